package models

// MaxSearchSize caps documents returned to the model per search.
const MaxSearchSize = 100

// SearchRequest describes one Elasticsearch search.
type SearchRequest struct {
	Index        string                 `json:"index"`
	Query        map[string]interface{} `json:"query,omitempty"`
	Size         int                    `json:"size"`
	From         int                    `json:"from"`
	Sort         []interface{}          `json:"sort,omitempty"`
	SourceFields []string               `json:"source_fields,omitempty"`
}

func (r *SearchRequest) SetDefaults() {
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > MaxSearchSize {
		r.Size = MaxSearchSize
	}
}

// SearchResponse for ES search results
type SearchResponse struct {
	Status    string                   `json:"status"`
	Index     string                   `json:"index"`
	Took      int                      `json:"took"`
	TimedOut  bool                     `json:"timed_out"`
	TotalHits int64                    `json:"total_hits"`
	MaxScore  *float64                 `json:"max_score,omitempty"`
	Hits      []map[string]interface{} `json:"hits"`
	Query     map[string]interface{}   `json:"query,omitempty"`
}
