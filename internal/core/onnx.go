//go:build !windows

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode"

	"ner-gazetteer/internal/core/types"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitOnnxRuntime loads the onnxruntime shared library. It must be called
// before an onnx_cnn model is loaded; later calls return the first result.
func InitOnnxRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib != "" {
			ort.SetSharedLibraryPath(dylib)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

func DestroyOnnxRuntime() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Error("error destroying onnx environment", "error", err)
		}
	}
}

const (
	onnxModelFile       = "model.onnx"
	onnxTransitionsFile = "transitions.json"
	onnxTokenizerFile   = "tokenizer.json"
	onnxLabelsFile      = "labels.json"

	// scale applied to outside tag emissions before decoding
	outsideTagScale = 0.7
)

var defaultIdx2Tag = []string{
	"ADDRESS", "CARD_NUMBER", "COMPANY", "CREDIT_SCORE", "DATE",
	"EMAIL", "ETHNICITY", "GENDER", "ID_NUMBER", "LICENSE_PLATE",
	"LOCATION", "NAME", "O", "PHONENUMBER", "SERVICE_CODE",
	"SEXUAL_ORIENTATION", "SSN", "URL", "VIN",
}

func loadJSON[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("error parsing %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// viterbi returns the highest scoring tag sequence under the CRF transitions.
func viterbi(emissions [][]float32, transitions [][]float32, seqLen int) []int {
	if seqLen == 0 {
		return nil
	}
	N := len(transitions)
	dp := make([][]float32, seqLen)
	bp := make([][]int, seqLen)
	for t := 0; t < seqLen; t++ {
		dp[t] = make([]float32, N)
		bp[t] = make([]int, N)
	}
	copy(dp[0], emissions[0])
	for t := 1; t < seqLen; t++ {
		for j := 0; j < N; j++ {
			maxScore := float32(-1e9)
			var maxPrev int
			for k := 0; k < N; k++ {
				s := dp[t-1][k] + transitions[k][j] + emissions[t][j]
				if s > maxScore {
					maxScore = s
					maxPrev = k
				}
			}
			dp[t][j] = maxScore
			bp[t][j] = maxPrev
		}
	}

	seq := make([]int, seqLen)
	bestScore := float32(-1e9)
	for j := 0; j < N; j++ {
		if dp[seqLen-1][j] > bestScore {
			bestScore = dp[seqLen-1][j]
			seq[seqLen-1] = j
		}
	}
	for t := seqLen - 1; t > 0; t-- {
		seq[t-1] = bp[t][seq[t]]
	}
	return seq
}

// subwordWordIDs maps each subword to the index of the whitespace separated
// word it belongs to, or -1 for special tokens. Offsets are byte offsets.
func subwordWordIDs(text string, offsets []tokenizers.Offset) []int {
	wordIDs := make([]int, len(offsets))
	cur, lastEnd := -1, -1
	for i, off := range offsets {
		start, end := int(off[0]), int(off[1])
		if start == 0 && end == 0 {
			wordIDs[i] = -1
		} else {
			if (start == 0 || (start < len(text) && unicode.IsSpace(rune(text[start])))) && start >= lastEnd {
				cur++
			}
			wordIDs[i] = max(cur, 0)
		}
		lastEnd = end
	}
	return wordIDs
}

// aggregatePredictions gives each word the first non-outside tag among its
// subwords.
func aggregatePredictions(tags []string, lens []int) []string {
	a := make([]string, len(lens))
	ptr := 0
	for wi, l := range lens {
		best := "O"
		for j := 0; j < l; j++ {
			if tags[ptr+j] != "O" {
				best = tags[ptr+j]
				break
			}
		}
		a[wi] = best
		ptr += l
	}
	return a
}

// OnnxModel is a subword CNN tagger exported to onnx with a CRF decoding
// layer. The model directory holds model.onnx, transitions.json,
// tokenizer.json and optionally labels.json.
type OnnxModel struct {
	session     *ort.DynamicAdvancedSession
	tokenizer   *tokenizers.Tokenizer
	transitions [][]float32
	idx2tag     []string
	outsideIdx  int
}

func LoadOnnxModel(modelDir string) (*OnnxModel, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime is not initialized")
	}

	trans, err := loadJSON[[][]float32](filepath.Join(modelDir, onnxTransitionsFile))
	if err != nil {
		return nil, fmt.Errorf("CRF load error: %w", err)
	}

	idx2tag := defaultIdx2Tag
	if _, err := os.Stat(filepath.Join(modelDir, onnxLabelsFile)); err == nil {
		idx2tag, err = loadJSON[[]string](filepath.Join(modelDir, onnxLabelsFile))
		if err != nil {
			return nil, fmt.Errorf("labels load error: %w", err)
		}
	}
	if len(idx2tag) != len(trans) {
		return nil, fmt.Errorf("model has %d labels but %d transition rows", len(idx2tag), len(trans))
	}

	outsideIdx := -1
	for i, tag := range idx2tag {
		if tag == "O" {
			outsideIdx = i
			break
		}
	}
	if outsideIdx < 0 {
		return nil, fmt.Errorf("O tag not found in model tags")
	}

	tk, err := tokenizers.FromFile(filepath.Join(modelDir, onnxTokenizerFile))
	if err != nil {
		return nil, fmt.Errorf("tokenizer load: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, onnxModelFile),
		[]string{"input_ids"},
		[]string{"emissions"},
		nil,
	)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	slog.Info("loaded onnx model", "dir", modelDir, "labels", len(idx2tag))

	return &OnnxModel{
		session:     session,
		tokenizer:   tk,
		transitions: trans,
		idx2tag:     idx2tag,
		outsideIdx:  outsideIdx,
	}, nil
}

func (m *OnnxModel) emissions(ids []int64) ([][]float32, error) {
	L, N := int64(len(ids)), int64(len(m.transitions))

	inT, err := ort.NewTensor(ort.NewShape(1, L), ids)
	if err != nil {
		return nil, err
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(1, L, N))
	if err != nil {
		return nil, err
	}
	defer outT.Destroy()

	if err := m.session.Run([]ort.Value{inT}, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	flat := outT.GetData()
	seq := make([][]float32, L)
	for t := int64(0); t < L; t++ {
		row := make([]float32, N)
		copy(row, flat[t*N:(t+1)*N])
		row[m.outsideIdx] *= outsideTagScale
		seq[t] = row
	}
	return seq, nil
}

func (m *OnnxModel) Predict(text string) ([]types.Entity, error) {
	cleanedText, originalSpans := CleanTextWithSpans(text)
	if len(originalSpans) == 0 {
		return nil, nil
	}

	enc := m.tokenizer.EncodeWithOptions(cleanedText, false, tokenizers.WithReturnAllAttributes())
	if len(enc.IDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(enc.IDs))
	for i, v := range enc.IDs {
		ids[i] = int64(v)
	}

	seq, err := m.emissions(ids)
	if err != nil {
		return nil, err
	}

	tagsIdx := viterbi(seq, m.transitions, len(ids))
	subTags := make([]string, len(tagsIdx))
	for i, j := range tagsIdx {
		subTags[i] = m.idx2tag[j]
	}

	wordIDs := subwordWordIDs(cleanedText, enc.Offsets)
	sublens := make([]int, len(originalSpans))
	for i, w := range wordIDs {
		if w >= len(sublens) {
			// the tokenizer split a word the cleaner kept whole
			wordIDs[i] = len(sublens) - 1
			w = wordIDs[i]
		}
		if w >= 0 {
			sublens[w]++
		}
	}

	// aggregatePredictions walks subwords in word order
	ordered := make([]string, 0, len(subTags))
	for w := range sublens {
		for i, wid := range wordIDs {
			if wid == w {
				ordered = append(ordered, subTags[i])
			}
		}
	}
	wordTags := aggregatePredictions(ordered, sublens)

	runes := []rune(text)
	var ents []types.Entity
	for wid, tag := range wordTags {
		if sublens[wid] == 0 || tag == "O" {
			continue
		}
		ents = append(ents, types.CreateEntityWithRune(tag, runes, originalSpans[wid][0], originalSpans[wid][1]))
	}
	return ents, nil
}

func (m *OnnxModel) Labels() []string {
	labels := make([]string, 0, len(m.idx2tag))
	for _, tag := range m.idx2tag {
		if tag != "O" {
			labels = append(labels, tag)
		}
	}
	return labels
}

func (m *OnnxModel) Release() {
	if err := m.session.Destroy(); err != nil {
		slog.Error("error destroying onnx session", "error", err)
	}
	m.tokenizer.Close()
}
