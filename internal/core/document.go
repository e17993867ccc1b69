package core

import (
	"fmt"
	"sort"
	"strings"

	"ner-gazetteer/internal/core/types"

	"github.com/google/uuid"
)

// Annotator adds spans to a document. Annotators never remove or alter spans
// written by other annotators.
type Annotator interface {
	Name() string
	Annotate(doc *Document) error
}

// MergePolicy decides how spans from different annotators are combined when
// entities are read out of a document.
type MergePolicy string

const (
	// KeepAll returns every span, overlapping or not.
	KeepAll MergePolicy = "keep_all"
	// LaterWins drops a span when it overlaps a span written by an annotator
	// applied after it.
	LaterWins MergePolicy = "later_wins"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", KeepAll:
		return KeepAll, nil
	case LaterWins:
		return LaterWins, nil
	default:
		return "", fmt.Errorf("invalid merge policy '%s'", s)
	}
}

type sourceSpans struct {
	source string
	spans  []types.Entity
}

type Document struct {
	Id     uuid.UUID
	Text   string
	Tokens []Token

	runes   []rune
	sources []sourceSpans
}

func NewDocument(text string) *Document {
	return &Document{
		Id:     uuid.New(),
		Text:   text,
		Tokens: Tokenize(text),
		runes:  []rune(text),
	}
}

func (d *Document) Runes() []rune {
	return d.runes
}

func (d *Document) Len() int {
	return len(d.runes)
}

// AddSpans records spans produced by source. Spans outside the text are
// rejected so every stored span satisfies 0 <= Start <= End <= Len().
func (d *Document) AddSpans(source string, spans []types.Entity) error {
	for _, s := range spans {
		if s.Start < 0 || s.Start > s.End || s.End > len(d.runes) {
			return fmt.Errorf("span [%d, %d) from '%s' is outside document of length %d", s.Start, s.End, source, len(d.runes))
		}
	}

	idx := -1
	for i, src := range d.sources {
		if src.source == source {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.sources = append(d.sources, sourceSpans{source: source})
		idx = len(d.sources) - 1
	}

	for _, s := range spans {
		// value is always re-read from the text so it matches the offsets
		d.sources[idx].spans = append(d.sources[idx].spans, types.CreateEntityWithRune(s.Label, d.runes, s.Start, s.End))
	}
	return nil
}

// Sources lists annotators that wrote spans, in the order they were applied.
func (d *Document) Sources() []string {
	names := make([]string, 0, len(d.sources))
	for _, src := range d.sources {
		names = append(names, src.source)
	}
	return names
}

func (d *Document) Spans(source string) []types.Entity {
	for _, src := range d.sources {
		if src.source == source {
			out := make([]types.Entity, len(src.spans))
			copy(out, src.spans)
			return out
		}
	}
	return nil
}

type rankedSpan struct {
	entity types.Entity
	rank   int
}

// Entities returns the document's spans ordered by start offset. Ties are
// ordered by annotator application order, then by end offset.
func (d *Document) Entities(policy MergePolicy) []types.Entity {
	ranked := make([]rankedSpan, 0)
	for rank, src := range d.sources {
		for _, s := range src.spans {
			ranked = append(ranked, rankedSpan{entity: s, rank: rank})
		}
	}

	if policy == LaterWins {
		kept := make([]rankedSpan, 0, len(ranked))
		for _, r := range ranked {
			if !overlapsLaterSource(r, ranked) {
				kept = append(kept, r)
			}
		}
		ranked = kept
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.entity.Start != b.entity.Start {
			return a.entity.Start < b.entity.Start
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.entity.End < b.entity.End
	})

	entities := make([]types.Entity, 0, len(ranked))
	for _, r := range ranked {
		entities = append(entities, r.entity)
	}
	return entities
}

func overlapsLaterSource(span rankedSpan, all []rankedSpan) bool {
	for _, other := range all {
		if other.rank > span.rank && spansCollide(span.entity, other.entity) {
			return true
		}
	}
	return false
}

// empty spans only collide with spans at the same position
func spansCollide(a, b types.Entity) bool {
	if a.Start == a.End || b.Start == b.End {
		return a.Start == b.Start && a.End == b.End
	}
	return a.Overlaps(b)
}

// LabelToEntities groups the entities Entities(policy) returns by label, so
// queries see the same spans that are reported.
func (d *Document) LabelToEntities(policy MergePolicy) LabelToEntities {
	out := make(LabelToEntities)
	for _, e := range d.Entities(policy) {
		out[e.Label] = append(out[e.Label], e)
	}
	return out
}
