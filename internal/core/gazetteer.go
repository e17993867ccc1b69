package core

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"ner-gazetteer/internal/core/types"

	"gopkg.in/yaml.v2"
)

var ErrMalformedGazetteerInput = errors.New("malformed gazetteer input")

//go:embed gazetteer.yaml
var defaultGazetteerYAML []byte

type GazetteerConfig struct {
	Name          string              `yaml:"name"`
	CaseSensitive bool                `yaml:"case_sensitive"`
	Labels        map[string][]string `yaml:"labels"`
}

// LoadGazetteerConfig reads a gazetteer definition from path, or the
// embedded default when path is empty.
func LoadGazetteerConfig(path string) (GazetteerConfig, error) {
	data := defaultGazetteerYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return GazetteerConfig{}, fmt.Errorf("error reading gazetteer file: %w", err)
		}
	}

	cfg := GazetteerConfig{CaseSensitive: true}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return GazetteerConfig{}, fmt.Errorf("%w: %w", ErrMalformedGazetteerInput, err)
	}
	return cfg, nil
}

// tokenTrie is a prefix trie over token sequences.
type tokenTrie struct {
	root *trieNode
	size int
}

type trieNode struct {
	terminal bool
	children map[string]*trieNode
}

func newTokenTrie() *tokenTrie {
	return &tokenTrie{root: &trieNode{children: map[string]*trieNode{}}}
}

func (t *tokenTrie) add(tokens []string) {
	cur := t.root
	for _, tok := range tokens {
		next, ok := cur.children[tok]
		if !ok {
			next = &trieNode{children: map[string]*trieNode{}}
			cur.children[tok] = next
		}
		cur = next
	}
	if !cur.terminal {
		cur.terminal = true
		t.size++
	}
}

// longestMatch returns the number of tokens in the longest entry that is a
// prefix of tokens, or 0 if there is none.
func (t *tokenTrie) longestMatch(tokens []string) int {
	best := 0
	cur := t.root
	for i, tok := range tokens {
		next, ok := cur.children[tok]
		if !ok {
			break
		}
		cur = next
		if cur.terminal {
			best = i + 1
		}
	}
	return best
}

type labelTrie struct {
	label string
	trie  *tokenTrie
}

// GazetteerAnnotator marks exact matches of known names. The tries are
// read-only after construction.
type GazetteerAnnotator struct {
	name          string
	caseSensitive bool
	tries         []labelTrie
}

func NewGazetteerAnnotator(name string, labels map[string][]string, caseSensitive bool) (*GazetteerAnnotator, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels provided", ErrMalformedGazetteerInput)
	}
	if name == "" {
		name = "gazetteer"
	}

	ordered := make([]string, 0, len(labels))
	for label := range labels {
		ordered = append(ordered, label)
	}
	// equal length matches under different labels go to the first label
	sort.Strings(ordered)

	g := &GazetteerAnnotator{name: name, caseSensitive: caseSensitive}
	for _, label := range ordered {
		if strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("%w: empty label", ErrMalformedGazetteerInput)
		}
		names := labels[label]
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: label '%s' has no names", ErrMalformedGazetteerInput, label)
		}

		trie := newTokenTrie()
		for _, entry := range names {
			tokens := g.normalize(Tokenize(entry))
			if len(tokens) == 0 {
				return nil, fmt.Errorf("%w: blank name under label '%s'", ErrMalformedGazetteerInput, label)
			}
			trie.add(tokens)
		}
		g.tries = append(g.tries, labelTrie{label: label, trie: trie})
		slog.Info("loaded gazetteer label", "gazetteer", name, "label", label, "entries", trie.size)
	}

	return g, nil
}

func NewGazetteerAnnotatorFromConfig(cfg GazetteerConfig) (*GazetteerAnnotator, error) {
	return NewGazetteerAnnotator(cfg.Name, cfg.Labels, cfg.CaseSensitive)
}

func (g *GazetteerAnnotator) normalize(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if g.caseSensitive {
			out[i] = tok.Text
		} else {
			out[i] = strings.ToLower(tok.Text)
		}
	}
	return out
}

func (g *GazetteerAnnotator) Name() string {
	return g.name
}

func (g *GazetteerAnnotator) Labels() []string {
	labels := make([]string, 0, len(g.tries))
	for _, t := range g.tries {
		labels = append(labels, t.label)
	}
	return labels
}

// Match returns leftmost-longest, non-overlapping matches in tokens.
func (g *GazetteerAnnotator) Match(text []rune, tokens []Token) []types.Entity {
	normalized := g.normalize(tokens)

	var out []types.Entity
	for i := 0; i < len(tokens); {
		bestLen, bestLabel := 0, ""
		for _, t := range g.tries {
			if n := t.trie.longestMatch(normalized[i:]); n > bestLen {
				bestLen, bestLabel = n, t.label
			}
		}

		if bestLen == 0 {
			i++
			continue
		}

		out = append(out, types.CreateEntityWithRune(bestLabel, text, tokens[i].Start, tokens[i+bestLen-1].End))
		i += bestLen
	}
	return out
}

func (g *GazetteerAnnotator) Annotate(doc *Document) error {
	return doc.AddSpans(g.name, g.Match(doc.Runes(), doc.Tokens))
}
