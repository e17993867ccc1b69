package core

import (
	"sort"
	"strings"

	"ner-gazetteer/internal/core/types"
)

// LabelToEntities groups a document's entities by label.
type LabelToEntities map[string][]types.Entity

type Filter interface {
	Matches(entities LabelToEntities) bool
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Matches(entities LabelToEntities) bool {
	for _, filter := range f.filters {
		if !filter.Matches(entities) {
			return false
		}
	}
	return true
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Matches(entities LabelToEntities) bool {
	for _, filter := range f.filters {
		if filter.Matches(entities) {
			return true
		}
	}
	return false
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Matches(entities LabelToEntities) bool {
	return !f.filter.Matches(entities)
}

// CountFilter matches when the number of entities with label lies strictly
// between min and max.
type CountFilter struct {
	label string
	min   int
	max   int
}

func (f *CountFilter) Matches(entities LabelToEntities) bool {
	count := len(entities[f.label])
	return f.min < count && count < f.max
}

// anyValue reports whether any entity with label has a value satisfying pred.
func anyValue(entities LabelToEntities, label string, pred func(string) bool) bool {
	for _, entity := range entities[label] {
		if pred(entity.Value) {
			return true
		}
	}
	return false
}

type SubstringFilter struct {
	label  string
	substr string
}

func (f *SubstringFilter) Matches(entities LabelToEntities) bool {
	return anyValue(entities, f.label, func(v string) bool { return strings.Contains(v, f.substr) })
}

type StringEqFilter struct {
	label string
	value string
}

func (f *StringEqFilter) Matches(entities LabelToEntities) bool {
	return anyValue(entities, f.label, func(v string) bool { return v == f.value })
}

type StringLtFilter struct {
	label string
	value string
}

func (f *StringLtFilter) Matches(entities LabelToEntities) bool {
	return anyValue(entities, f.label, func(v string) bool { return v < f.value })
}

type StringGtFilter struct {
	label string
	value string
}

func (f *StringGtFilter) Matches(entities LabelToEntities) bool {
	return anyValue(entities, f.label, func(v string) bool { return v > f.value })
}

// MatchQueries evaluates named queries against a document's entities under
// policy and returns the names of the queries it satisfies, in sorted order.
func MatchQueries(doc *Document, queries map[string]Filter, policy MergePolicy) []string {
	entities := doc.LabelToEntities(policy)
	matched := make([]string, 0)
	for name, filter := range queries {
		if filter.Matches(entities) {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched
}
