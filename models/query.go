package models

// QueryOptions configures a query against the pipeline.
type QueryOptions struct {
	RetrievalLimit int  `json:"retrieval_limit" validate:"omitempty,gt=0,lte=100"`
	Generate       bool `json:"generate"`
	MaxTokens      int  `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// DefaultRetrievalLimit is applied when a query does not specify one.
const DefaultRetrievalLimit = 5

// QueryResult is the outcome of a query. Answer is empty for
// retrieval-only queries; Sources are ordered by descending similarity.
type QueryResult struct {
	Answer   string            `json:"answer,omitempty"`
	Sources  []ScoredChunk     `json:"sources"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
