package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go_audit_backend/config"
	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/platform/cache"
)

// Vectorizer upserts document content into the knowledge store. One-shot per
// pipeline run; failure is fatal to the batch request.
type Vectorizer interface {
	VectorizeText(ctx context.Context, fileID string, userID int64, fileName, content string) (*models.VectorizeResult, error)
	VectorizeTextList(ctx context.Context, fileID string, userID int64, fileName string, contents []string) (*models.VectorizeResult, error)
}

// Searcher queries the knowledge store scoped to a vectorized file.
type Searcher interface {
	Search(ctx context.Context, scopeKey, query string) ([]models.SearchResult, error)
}

// KnowledgeService is the HTTP client of the external knowledge agent.
type KnowledgeService struct {
	baseURL string
	topK    int
	client  *http.Client
	cache   cache.CacheService
}

func NewKnowledgeService(cfg *config.Config, cacheService cache.CacheService) *KnowledgeService {
	return &KnowledgeService{
		baseURL: strings.TrimSuffix(cfg.KnowledgeAgent, "/"),
		topK:    cfg.SearchTopK,
		client:  &http.Client{Timeout: cfg.VectorTimeout},
		cache:   cacheService,
	}
}

func (s *KnowledgeService) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logging.Logger.Error("fail closing response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("knowledge agent %s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type vectorizeBody struct {
	Content  interface{} `json:"content"`
	FileID   string      `json:"fileId"`
	UserID   int64       `json:"userId"`
	FileName string      `json:"fileName"`
}

func (s *KnowledgeService) VectorizeText(ctx context.Context, fileID string, userID int64, fileName, content string) (*models.VectorizeResult, error) {
	var res models.VectorizeResult
	body := vectorizeBody{Content: content, FileID: fileID, UserID: userID, FileName: fileName}
	if err := s.postJSON(ctx, "/vectorize/text", body, &res); err != nil {
		logging.Logger.Error("fail VectorizeText", "file_id", fileID, "error", err)
		return nil, err
	}
	return &res, nil
}

func (s *KnowledgeService) VectorizeTextList(ctx context.Context, fileID string, userID int64, fileName string, contents []string) (*models.VectorizeResult, error) {
	var res models.VectorizeResult
	body := vectorizeBody{Content: contents, FileID: fileID, UserID: userID, FileName: fileName}
	if err := s.postJSON(ctx, "/vectorize/text_list", body, &res); err != nil {
		logging.Logger.Error("fail VectorizeTextList", "file_id", fileID, "error", err)
		return nil, err
	}
	return &res, nil
}

// searchResponse tolerates the agent returning documents/metadatas either
// flat or nested one level.
type searchResponse struct {
	Documents json.RawMessage `json:"documents"`
	Metadatas json.RawMessage `json:"metadatas"`
}

func (s *KnowledgeService) Search(ctx context.Context, scopeKey, query string) ([]models.SearchResult, error) {
	cacheKey := fmt.Sprintf("kb_search:%s:%s", scopeKey, query)
	value, err := s.cache.GetOrLoad(cacheKey, 10*time.Minute, func() (interface{}, error) {
		return s.searchRemote(ctx, scopeKey, query)
	})
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case []models.SearchResult:
		return v, nil
	case string:
		var results []models.SearchResult
		if err := json.Unmarshal([]byte(v), &results); err != nil {
			return nil, fmt.Errorf("failed to decode cached search: %w", err)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unexpected cached search type %T", value)
	}
}

func (s *KnowledgeService) searchRemote(ctx context.Context, scopeKey, query string) ([]models.SearchResult, error) {
	body := map[string]interface{}{
		"userId":  scopeKey,
		"query":   query,
		"keyword": "",
		"topk":    s.topK,
	}
	var resp searchResponse
	if err := s.postJSON(ctx, "/search", body, &resp); err != nil {
		logging.Logger.Error("fail Search", "scope", scopeKey, "query", query, "error", err)
		return nil, err
	}

	documents := flattenStrings(resp.Documents)
	metadatas := flattenObjects(resp.Metadatas)

	results := make([]models.SearchResult, 0, len(documents))
	for i, doc := range documents {
		if doc == "" || i >= len(metadatas) {
			continue
		}
		meta := metadatas[i]
		fileID, _ := meta["file_id"].(string)
		if fileID == "" {
			if n, ok := meta["file_id"].(float64); ok {
				fileID = fmt.Sprintf("%.0f", n)
			}
		}
		if fileID == "" {
			continue
		}
		fileName, _ := meta["file_name"].(string)
		results = append(results, models.SearchResult{
			Title:   fileName,
			ID:      fileID,
			Content: doc,
		})
	}
	return results, nil
}

func flattenStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0]
	}
	return nil
}

func flattenObjects(raw json.RawMessage) []map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var flat []map[string]interface{}
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var nested [][]map[string]interface{}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0]
	}
	return nil
}
