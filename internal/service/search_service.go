package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"catalog-lens/internal/pkg/logger"
	"catalog-lens/pkg/capture"
)

const (
	searchModule = "Search"
	SearchPath   = "/api/products/search/image"
)

// SearchOutcome is the backend's answer to the latest search.
type SearchOutcome struct {
	Filename   string          `json:"filename"`
	Status     int             `json:"status"`
	Results    json.RawMessage `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// CatalogSearchService sends captured images to the backend's similarity
// search. It owns the "searching" flag the workflow consults, so only one
// search runs at a time.
type CatalogSearchService struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  logger.ILogger

	searching atomic.Bool
	mu        sync.Mutex
	last      *SearchOutcome
}

func NewCatalogSearchService(baseURL string, tokens TokenSource, client *http.Client, log logger.ILogger) *CatalogSearchService {
	if client == nil {
		client = http.DefaultClient
	}
	return &CatalogSearchService{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  client,
		logger:  log,
	}
}

func (s *CatalogSearchService) IsSearching() bool {
	return s.searching.Load()
}

// LastOutcome returns the most recent finished search, if any.
func (s *CatalogSearchService) LastOutcome() (SearchOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SearchOutcome{}, false
	}
	return *s.last, true
}

// Search uploads img and records the outcome. It satisfies capture.SearchFunc.
func (s *CatalogSearchService) Search(ctx context.Context, img capture.CapturedImage) error {
	if !s.searching.CompareAndSwap(false, true) {
		return capture.ErrSearchInProgress
	}
	defer s.searching.Store(false)

	outcome, err := s.post(ctx, img)
	if err != nil {
		s.logger.Error(searchModule, "Catalog search failed", map[string]interface{}{
			"filename": img.Filename,
			"error":    err.Error(),
		})
		outcome.Error = err.Error()
	} else {
		s.logger.Info(searchModule, "Catalog search finished", map[string]interface{}{
			"filename": img.Filename,
			"status":   outcome.Status,
		})
	}
	outcome.Filename = img.Filename
	outcome.FinishedAt = time.Now()

	s.mu.Lock()
	s.last = &outcome
	s.mu.Unlock()
	return err
}

func (s *CatalogSearchService) post(ctx context.Context, img capture.CapturedImage) (SearchOutcome, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, img.Filename))
	header.Set("Content-Type", img.MimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return SearchOutcome{}, err
	}
	if _, err := part.Write(img.Data); err != nil {
		return SearchOutcome{}, err
	}
	if err := form.Close(); err != nil {
		return SearchOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+SearchPath, &body)
	if err != nil {
		return SearchOutcome{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token, ok := tokenFrom(ctx, s.tokens); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SearchOutcome{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchOutcome{Status: resp.StatusCode}, fmt.Errorf("read search response: %w", err)
	}

	outcome := SearchOutcome{Status: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return outcome, fmt.Errorf("search backend returned %d", resp.StatusCode)
	}
	if json.Valid(raw) {
		outcome.Results = raw
	}
	return outcome, nil
}
