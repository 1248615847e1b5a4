package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cortexai/opsagent/internal/models"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchConfig holds connection settings for the log cluster.
type ElasticsearchConfig struct {
	Addresses       []string
	Username        string
	Password        string
	VerifyCerts     bool
	MaxRetries      int
	AllowedPatterns []string // index patterns that are permitted
}

// ElasticsearchService wraps the go-elasticsearch client
type ElasticsearchService struct {
	client          *elasticsearch.Client
	allowedPatterns []string
}

// NewElasticsearchService creates an ES client using go-elasticsearch/v8
func NewElasticsearchService(cfg ElasticsearchConfig) (*ElasticsearchService, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch: at least one address is required")
	}
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &ElasticsearchService{
		client:          client,
		allowedPatterns: cfg.AllowedPatterns,
	}, nil
}

// IsIndexAllowed returns true if the index matches any of the allowed patterns.
// If no patterns are configured, all indices are allowed.
func (s *ElasticsearchService) IsIndexAllowed(index string) bool {
	return IndexAllowed(s.allowedPatterns, index)
}

// IndexAllowed reports whether index matches one of patterns. Empty patterns
// allow everything.
func IndexAllowed(patterns []string, index string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, index)
		if err == nil && matched {
			return true
		}
		// A trailing wildcard also admits the bare prefix.
		prefix := strings.TrimSuffix(pattern, "*")
		if prefix != pattern && strings.HasPrefix(index, prefix) {
			return true
		}
	}
	return false
}

// TestConnection pings the cluster
func (s *ElasticsearchService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// ListIndices returns all indices, filtered by allowedPatterns if configured
func (s *ElasticsearchService) ListIndices(ctx context.Context) ([]map[string]interface{}, error) {
	res, err := s.client.Cat.Indices(
		s.client.Cat.Indices.WithContext(ctx),
		s.client.Cat.Indices.WithFormat("json"),
		s.client.Cat.Indices.WithH("index,docs.count,store.size,health,status"),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("list indices error: %s", res.Status())
	}

	var all []map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decode indices: %w", err)
	}

	if len(s.allowedPatterns) == 0 {
		return all, nil
	}
	var filtered []map[string]interface{}
	for _, idx := range all {
		name, _ := idx["index"].(string)
		if s.IsIndexAllowed(name) {
			filtered = append(filtered, idx)
		}
	}
	return filtered, nil
}

// Search executes an ES search query, enforcing allowedPatterns
func (s *ElasticsearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	if !s.IsIndexAllowed(req.Index) {
		return nil, fmt.Errorf("access to index %q is not permitted", req.Index)
	}
	req.SetDefaults()

	body := map[string]interface{}{
		"size": req.Size,
		"from": req.From,
	}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	if len(req.SourceFields) > 0 {
		body["_source"] = req.SourceFields
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(req.Index),
		s.client.Search.WithBody(bytes.NewReader(bodyBytes)),
		s.client.Search.WithIgnoreUnavailable(true),
	}

	res, err := s.client.Search(opts...)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := decodeBody(res.Body, res.Status())
	if err != nil {
		return nil, err
	}

	return parseSearchResponse(req.Index, req.Query, raw), nil
}

// SearchLogs runs a Lucene query_string search, newest documents first.
func (s *ElasticsearchService) SearchLogs(ctx context.Context, index, query string, size int) (*models.SearchResponse, error) {
	return s.Search(ctx, LogSearchRequest(index, query, size))
}

// LogSearchRequest builds the request SearchLogs sends.
func LogSearchRequest(index, query string, size int) *models.SearchRequest {
	q := map[string]interface{}{"match_all": map[string]interface{}{}}
	if strings.TrimSpace(query) != "" && strings.TrimSpace(query) != "*" {
		q = map[string]interface{}{
			"query_string": map[string]interface{}{
				"query":            query,
				"default_operator": "AND",
			},
		}
	}
	return &models.SearchRequest{
		Index: index,
		Query: q,
		Size:  size,
		Sort:  []interface{}{map[string]interface{}{"@timestamp": map[string]interface{}{"order": "desc", "unmapped_type": "date"}}},
	}
}

func decodeBody(r io.Reader, status string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}

func parseSearchResponse(index string, query map[string]interface{}, raw map[string]interface{}) *models.SearchResponse {
	resp := &models.SearchResponse{
		Status: "success",
		Index:  index,
		Query:  query,
	}

	if took, ok := raw["took"].(float64); ok {
		resp.Took = int(took)
	}
	if timedOut, ok := raw["timed_out"].(bool); ok {
		resp.TimedOut = timedOut
	}

	if hitsObj, ok := raw["hits"].(map[string]interface{}); ok {
		if totalObj, ok := hitsObj["total"].(map[string]interface{}); ok {
			if val, ok := totalObj["value"].(float64); ok {
				resp.TotalHits = int64(val)
			}
		}
		if maxScore, ok := hitsObj["max_score"].(float64); ok {
			resp.MaxScore = &maxScore
		}
		if hits, ok := hitsObj["hits"].([]interface{}); ok {
			for _, h := range hits {
				if hm, ok := h.(map[string]interface{}); ok {
					resp.Hits = append(resp.Hits, hm)
				}
			}
		}
	}

	return resp
}
