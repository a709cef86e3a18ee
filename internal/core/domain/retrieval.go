package domain

const (
	DefaultSearchTopK           = 10
	DefaultSimilarityThreshold  = 0.6
	DefaultKeywordScoreFloor    = 0.8
	DefaultAnswerTopK           = 5
	DefaultProductSummaryTopK   = 5
	DefaultSummaryChunkLimit    = 15
	DefaultHybridPoolMultiplier = 2
)

// SearchParams scopes a similarity search to one plan. Zero TopK falls back
// to DefaultSearchTopK; use NewSearchParams to also get the default threshold.
type SearchParams struct {
	PlanID              string
	QueryVector         []float32
	TopK                int
	SimilarityThreshold float64
}

func NewSearchParams(planID string, queryVector []float32) SearchParams {
	return SearchParams{
		PlanID:              planID,
		QueryVector:         queryVector,
		TopK:                DefaultSearchTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

type HybridSearchParams struct {
	SearchParams
	QueryText string
}

type SearchResult struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"score"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Answer struct {
	Text     string         `json:"text"`
	Grounded bool           `json:"grounded"`
	Sources  []SearchResult `json:"sources"`
}

// RetrieveRequest is a text query against one plan's policy chunks.
// Zero TopK and nil Threshold fall back to the search defaults.
type RetrieveRequest struct {
	PlanID    string   `json:"plan_id"`
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Hybrid    bool     `json:"hybrid"`
}
