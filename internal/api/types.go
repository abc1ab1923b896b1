package api

import (
	"time"

	"github.com/samcharles93/gguflens/internal/gguf"
)

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type ModelObject struct {
	ID       string    `json:"id"`
	Object   string    `json:"object"`
	Size     int64     `json:"size"`
	SizeText string    `json:"size_human"`
	Modified time.Time `json:"modified"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type ModelSummary struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Summary gguf.Summary `json:"summary"`
}

type MetadataEntry struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	ElemType string `json:"elem_type,omitempty"`
	Len      int    `json:"len,omitempty"`
	Value    string `json:"value"`
}

type MetadataResponse struct {
	ID       string          `json:"id"`
	Object   string          `json:"object"`
	Count    int             `json:"count"`
	Metadata []MetadataEntry `json:"metadata"`
}

type TensorObject struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Dims     []uint64 `json:"dims"`
	Elements uint64   `json:"elements"`
	Offset   uint64   `json:"offset"`
	Size     uint64   `json:"size"`
	Layer    *int     `json:"layer,omitempty"`
}

type TensorList struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Total   int            `json:"total"`
	Count   int            `json:"count"`
	Tensors []TensorObject `json:"tensors"`
}

// InspectResponse is returned for an uploaded file. ID identifies the
// inspection in server logs.
type InspectResponse struct {
	ID       string          `json:"id"`
	Object   string          `json:"object"`
	Summary  gguf.Summary    `json:"summary"`
	Metadata []MetadataEntry `json:"metadata,omitempty"`
}

// SearchRequest looks for tensors across the models directory.
type SearchRequest struct {
	Models []string `json:"models,omitempty"`
	Match  string   `json:"match,omitempty"`
	Type   string   `json:"type,omitempty"`
	Layer  *int     `json:"layer,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

type SearchHit struct {
	Model  string       `json:"model"`
	Tensor TensorObject `json:"tensor"`
}

type SearchResponse struct {
	Object string      `json:"object"`
	Count  int         `json:"count"`
	Hits   []SearchHit `json:"hits"`
	Errors []string    `json:"errors,omitempty"`
}
