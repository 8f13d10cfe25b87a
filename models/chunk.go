package models

import (
	"fmt"
	"net/url"
)

// Chunk is a bounded span of a document's text together with its embedding.
// Chunks are keyed by (DocumentID, ID) in the vector store; re-upserting the
// same key replaces the stored row.
type Chunk struct {
	ID         string            `json:"id" db:"chunk_id"`
	DocumentID string            `json:"document_id" db:"document_id"`
	Text       string            `json:"text" db:"content"`
	Ordinal    int               `json:"ordinal" db:"ordinal"` // position within the document
	Embedding  []float32         `json:"-" db:"embedding"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
}

// ScoredChunk is a search result: a chunk and its similarity score in [0, 1].
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexType selects the ANN index family built over the embedding column.
// The choice trades index-build cost against recall and query latency and
// cannot be changed without rebuilding the index.
type IndexType string

const (
	// IndexIVFFlat builds fast with moderate recall; suited to data that
	// changes frequently.
	IndexIVFFlat IndexType = "ivfflat"

	// IndexHNSW builds slowly but gives higher recall and lower query
	// latency; suited to stable, read-heavy data.
	IndexHNSW IndexType = "hnsw"
)

// Valid reports whether the index type is one of the supported families.
func (t IndexType) Valid() bool {
	return t == IndexIVFFlat || t == IndexHNSW
}

// VectorStoreConfig describes the backing table and index for a vector store.
type VectorStoreConfig struct {
	Table      string    `json:"table"`
	Dimensions int       `json:"dimensions"`
	IndexType  IndexType `json:"index_type"`
}

// Validate checks the store configuration before any DDL runs against it.
func (c VectorStoreConfig) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("table name is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if !c.IndexType.Valid() {
		return fmt.Errorf("unsupported index type %q", c.IndexType)
	}
	return nil
}

// ValidateConnectionURL checks that a store connection string is a
// well-formed postgres:// URL before it is handed to the driver.
func ValidateConnectionURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed connection string: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported connection scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("connection string is missing a host")
	}
	return nil
}
