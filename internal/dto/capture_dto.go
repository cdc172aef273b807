package dto

import (
	"encoding/json"
	"time"

	"catalog-lens/pkg/capture"
)

type CaptureStateResponse struct {
	capture.Snapshot
	Searching  bool                  `json:"searching"`
	LastSearch *SearchResultResponse `json:"lastSearch,omitempty"`
}

type SearchResultResponse struct {
	Filename   string          `json:"filename"`
	Status     int             `json:"status"`
	Results    json.RawMessage `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
}

type CaptureErrorResponse struct {
	Error string `json:"error"`
}
