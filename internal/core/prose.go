package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"ner-gazetteer/internal/core/types"

	"github.com/jdkato/prose/v2"
)

// ProseModel is a statistical English tagger. Entity offsets are recovered by
// aligning the tagger's tokens back onto the source text.
type ProseModel struct {
	model *prose.Model
}

// LoadProseModel loads a model saved with prose's Model.Write from modelDir,
// or the built-in English model when modelDir is empty.
func LoadProseModel(modelDir string) (m *ProseModel, err error) {
	if modelDir == "" {
		return &ProseModel{}, nil
	}

	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("error accessing prose model dir: %w", err)
	}

	// prose panics on unreadable model files
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("error loading prose model from '%s': %v", modelDir, r)
		}
	}()

	model := prose.ModelFromDisk(modelDir)
	slog.Info("loaded prose model", "dir", modelDir)
	return &ProseModel{model: model}, nil
}

func (m *ProseModel) Predict(text string) ([]types.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	opts := []prose.DocOpt{prose.WithSegmentation(false)}
	if m.model != nil {
		opts = append(opts, prose.UsingModel(m.model))
	}

	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("prose error: %w", err)
	}

	return alignTokenLabels(text, doc.Tokens()), nil
}

// alignTokenLabels groups IOB-labelled tokens into entities with rune offsets
// into text. Tokens that cannot be found in text end the current entity.
func alignTokenLabels(text string, tokens []prose.Token) []types.Entity {
	runes := []rune(text)

	var (
		entities   []types.Entity
		label      string
		start, end int
		open       bool
	)

	flush := func() {
		if open {
			entities = append(entities, types.CreateEntityWithRune(label, runes, start, end))
		}
		open = false
	}

	byteCursor, runeCursor := 0, 0
	for _, tok := range tokens {
		idx := strings.Index(text[byteCursor:], tok.Text)
		if tok.Text == "" || idx < 0 {
			flush()
			continue
		}

		tokStart := runeCursor + utf8.RuneCountInString(text[byteCursor:byteCursor+idx])
		tokEnd := tokStart + utf8.RuneCountInString(tok.Text)
		byteCursor += idx + len(tok.Text)
		runeCursor = tokEnd

		tag, prefix := splitIOB(tok.Label)
		if tag == "" {
			flush()
			continue
		}

		if open && tag == label && prefix != "B" {
			end = tokEnd
			continue
		}

		flush()
		label, start, end, open = tag, tokStart, tokEnd, true
	}
	flush()

	return entities
}

func splitIOB(label string) (tag string, prefix string) {
	if label == "" || label == "O" {
		return "", ""
	}
	if p, t, ok := strings.Cut(label, "-"); ok && (p == "B" || p == "I") {
		return t, p
	}
	return label, ""
}

func (m *ProseModel) Release() {}
