package api

import (
	"github.com/google/uuid"
)

type Entity struct {
	Text     string
	Label    string
	Start    int
	End      int
	LContext string
	RContext string
}

type AnnotateRequest struct {
	Text    string
	Queries map[string]string `json:"Queries,omitempty"`
	Policy  string            `json:"Policy,omitempty"`
}

type AnnotateQueryParams struct {
	Text   string `schema:"text"`
	Policy string `schema:"policy"`
}

type AnnotateResponse struct {
	Id       uuid.UUID
	Entities []Entity
	Groups   []string `json:"Groups,omitempty"`
}

type BatchAnnotateRequest struct {
	Texts  []string
	Policy string `json:"Policy,omitempty"`
}

type BatchAnnotateResponse struct {
	Results []AnnotateResponse
}

type LabelsResponse struct {
	Labels []string
}
