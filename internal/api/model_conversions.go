package api

import (
	"ner-gazetteer/internal/core"
	"ner-gazetteer/internal/core/types"
	"ner-gazetteer/pkg/api"
)

const contextLength = 20

func convertEntity(e types.Entity, text []rune) api.Entity {
	return api.Entity{
		Text:     e.Value,
		Label:    e.Label,
		Start:    e.Start,
		End:      e.End,
		LContext: string(text[max(e.Start-contextLength, 0):e.Start]),
		RContext: string(text[e.End:min(e.End+contextLength, len(text))]),
	}
}

func convertDocument(doc *core.Document, policy core.MergePolicy, groups []string) api.AnnotateResponse {
	entities := doc.Entities(policy)
	out := make([]api.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, convertEntity(e, doc.Runes()))
	}
	return api.AnnotateResponse{
		Id:       doc.Id,
		Entities: out,
		Groups:   groups,
	}
}
