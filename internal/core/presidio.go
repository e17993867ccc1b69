package core

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"

	"ner-gazetteer/internal/core/types"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v2"
)

const defaultPresidioThreshold = 0.5

type RecognizerResult struct {
	EntityType string
	Match      string
	Score      float64
	Start, End int
}

type PatternRegex struct {
	Regex *regexp2.Regexp
	Score float64
}

type PatternRecognizer struct {
	EntityType string
	Regexps    []PatternRegex
	Validate   func(string) bool
}

var entitiesMap = map[string]string{
	"DateRecognizer":       "DATE",
	"EmailRecognizer":      "EMAIL",
	"CreditCardRecognizer": "CARD_NUMBER",
	"UsSsnRecognizer":      "SSN",
	"UrlRecognizer":        "URL",
	"PhoneRecognizer":      "PHONENUMBER",
	"UsPassportRecognizer": "ID_NUMBER",
}

var validators = map[string]func(string) bool{
	"CreditCardRecognizer": isValidCard,
}

//go:embed recognizers.yaml
var recognizersYAML []byte

func loadPatterns(data []byte) ([]*PatternRecognizer, error) {
	raw := struct {
		Recognizers []struct {
			Name     string `yaml:"name"`
			Patterns []struct {
				Regex string  `yaml:"regex"`
				Score float64 `yaml:"score,omitempty"`
			} `yaml:"patterns"`
		} `yaml:"recognizers"`
	}{}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing recognizers: %w", err)
	}

	out := make([]*PatternRecognizer, 0, len(raw.Recognizers))
	for _, rec := range raw.Recognizers {
		pr := &PatternRecognizer{
			EntityType: rec.Name,
			Validate:   validators[rec.Name],
		}
		for _, p := range rec.Patterns {
			rx, err := regexp2.Compile(p.Regex, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("invalid regex for %s: %w", rec.Name, err)
			}
			pr.Regexps = append(pr.Regexps, PatternRegex{Regex: rx, Score: p.Score})
		}
		out = append(out, pr)
	}
	return out, nil
}

func (pr *PatternRecognizer) Label() string {
	if mapped, ok := entitiesMap[pr.EntityType]; ok && mapped != "" {
		return mapped
	}
	return pr.EntityType
}

// Recognize returns matches from every pattern scoring at least threshold.
// Start and End are rune offsets.
func (pr *PatternRecognizer) Recognize(text string, threshold float64) ([]RecognizerResult, error) {
	var results []RecognizerResult

	// patterns of one recognizer can produce the same match
	seen := make(map[[2]int]struct{})

	label := pr.Label()
	for _, rx := range pr.Regexps {
		if rx.Score < threshold {
			continue
		}

		m, err := rx.Regex.FindStringMatch(text)
		for ; m != nil && err == nil; m, err = rx.Regex.FindNextMatch(m) {
			start, end := m.Index, m.Index+m.Length
			if _, exists := seen[[2]int{start, end}]; exists {
				continue
			}
			seen[[2]int{start, end}] = struct{}{}

			match := m.String()
			if pr.Validate != nil && !pr.Validate(match) {
				continue
			}
			results = append(results, RecognizerResult{
				EntityType: label,
				Match:      match,
				Score:      rx.Score,
				Start:      start,
				End:        end,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("error matching %s: %w", pr.EntityType, err)
		}
	}
	return results, nil
}

// PresidioModel recognizes structured identifiers with pattern recognizers.
type PresidioModel struct {
	recognizers []*PatternRecognizer
	threshold   float64
}

func NewPresidioModel() (*PresidioModel, error) {
	recs, err := loadPatterns(recognizersYAML)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded pattern recognizers", "count", len(recs))
	return &PresidioModel{
		recognizers: recs,
		threshold:   defaultPresidioThreshold,
	}, nil
}

func (m *PresidioModel) Predict(text string) ([]types.Entity, error) {
	var results []RecognizerResult
	for _, pr := range m.recognizers {
		r, err := pr.Recognize(text, m.threshold)
		if err != nil {
			return nil, err
		}
		results = append(results, r...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Start != results[j].Start {
			return results[i].Start < results[j].Start
		}
		return results[i].End < results[j].End
	})

	runes := []rune(text)
	entities := make([]types.Entity, 0, len(results))
	for _, r := range results {
		entities = append(entities, types.CreateEntityWithRune(r.EntityType, runes, r.Start, r.End))
	}
	return entities, nil
}

func (m *PresidioModel) Release() {}

// Labels lists the labels of recognizers with at least one pattern above the
// threshold.
func (m *PresidioModel) Labels() []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0, len(m.recognizers))
	for _, pr := range m.recognizers {
		active := false
		for _, rx := range pr.Regexps {
			if rx.Score >= m.threshold {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if _, ok := seen[pr.Label()]; !ok {
			seen[pr.Label()] = struct{}{}
			labels = append(labels, pr.Label())
		}
	}
	sort.Strings(labels)
	return labels
}
