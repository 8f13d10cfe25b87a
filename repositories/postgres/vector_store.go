package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/repositories"
	"github.com/vectorgate/vectorgate/services"
)

// identifierPattern restricts table names to plain SQL identifiers. Table
// names are the only value interpolated into SQL text; everything else is
// a bind parameter.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// VectorStore implements repositories.VectorStore over PostgreSQL with the
// pgvector extension. Rows are keyed by (tenant_id, document_id, chunk_id)
// and carry an embedding column of the configured dimensionality.
type VectorStore struct {
	db     *DB
	cfg    models.VectorStoreConfig
	logger *zap.Logger
}

// NewVectorStore creates a vector store over an established connection.
// The configuration is validated here; the schema is created by
// EnsureSchema.
func NewVectorStore(db *DB, cfg models.VectorStoreConfig, logger *zap.Logger) (repositories.VectorStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid vector store configuration", err)
	}
	if !identifierPattern.MatchString(cfg.Table) {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("table name %q is not a valid identifier", cfg.Table), nil)
	}
	return &VectorStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config returns the store's immutable configuration
func (s *VectorStore) Config() models.VectorStoreConfig {
	return s.cfg
}

// EnsureSchema idempotently creates the extension, table and index. Every
// statement is create-if-absent, so repeated and concurrent calls from
// multiple instances converge on the same schema.
func (s *VectorStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				tenant_id   UUID NOT NULL,
				document_id TEXT NOT NULL,
				chunk_id    TEXT NOT NULL,
				content     TEXT NOT NULL,
				ordinal     INTEGER NOT NULL DEFAULT 0,
				embedding   vector(%d) NOT NULL,
				metadata    JSONB NOT NULL DEFAULT '{}',
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (tenant_id, document_id, chunk_id)
			)`, s.cfg.Table, s.cfg.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (tenant_id, document_id)`,
			s.cfg.Table, s.cfg.Table),
		s.indexStatement(),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return services.NewDomainError(services.ErrorTypeStorage, "failed to ensure vector store schema", err)
		}
	}

	s.logger.Info("vector store schema ensured",
		zap.String("table", s.cfg.Table),
		zap.Int("dimensions", s.cfg.Dimensions),
		zap.String("index_type", string(s.cfg.IndexType)))

	return nil
}

// indexStatement builds the ANN index DDL for the configured family.
// ivfflat builds fast with moderate recall; hnsw builds slowly but answers
// with higher recall and lower latency. Changing family means dropping and
// rebuilding the index.
func (s *VectorStore) indexStatement() string {
	switch s.cfg.IndexType {
	case models.IndexHNSW:
		return fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
			s.cfg.Table, s.cfg.Table)
	default:
		return fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			s.cfg.Table, s.cfg.Table)
	}
}

// Upsert writes chunks in a single transaction. Dimensionality is checked
// for the whole batch before any row is written, so a mismatched chunk
// rejects the batch without side effects. Conflicting keys are replaced
// atomically in the store (last write wins).
func (s *VectorStore) Upsert(ctx context.Context, tenantID uuid.UUID, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.cfg.Dimensions {
			return services.NewDomainError(services.ErrorTypeValidation, "embedding dimensionality mismatch", nil).
				WithDetail("chunk_id", chunk.ID).
				WithDetail("expected", s.cfg.Dimensions).
				WithDetail("got", len(chunk.Embedding))
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, document_id, chunk_id, content, ordinal, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (tenant_id, document_id, chunk_id)
		DO UPDATE SET content = EXCLUDED.content,
		              ordinal = EXCLUDED.ordinal,
		              embedding = EXCLUDED.embedding,
		              metadata = EXCLUDED.metadata,
		              updated_at = NOW()
	`, s.cfg.Table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to begin upsert transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return services.NewDomainError(services.ErrorTypeStorage, "failed to marshal chunk metadata", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			tenantID,
			chunk.DocumentID,
			chunk.ID,
			chunk.Text,
			chunk.Ordinal,
			pgvector.NewVector(chunk.Embedding),
			metadataJSON,
		); err != nil {
			return services.NewDomainError(services.ErrorTypeStorage, "failed to upsert chunk", err).
				WithDetail("chunk_id", chunk.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to commit upsert transaction", err)
	}

	s.logger.Debug("chunks upserted",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("count", len(chunks)))

	return nil
}

// SimilaritySearch returns the limit nearest chunks by cosine distance,
// scoped to the tenant. Results come back ordered by ascending distance
// (descending similarity) with chunk id as the deterministic tie-break.
func (s *VectorStore) SimilaritySearch(ctx context.Context, tenantID uuid.UUID, queryVector []float32, limit int, filter map[string]string) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "retrieval limit must be positive", nil).
			WithDetail("limit", limit)
	}
	if len(queryVector) != s.cfg.Dimensions {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "embedding dimensionality mismatch", nil).
			WithDetail("expected", s.cfg.Dimensions).
			WithDetail("got", len(queryVector))
	}

	query := fmt.Sprintf(`
		SELECT document_id, chunk_id, content, ordinal, metadata,
		       1 - (embedding <=> $2) AS score
		FROM %s
		WHERE tenant_id = $1
	`, s.cfg.Table)

	args := []interface{}{tenantID, pgvector.NewVector(queryVector)}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeStorage, "failed to marshal search filter", err)
		}
		query += ` AND metadata @> $3`
		args = append(args, filterJSON)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $2, chunk_id LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStorage, "similarity search failed", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []models.ScoredChunk
	for rows.Next() {
		var (
			chunk        models.Chunk
			metadataJSON []byte
			score        float64
		)
		if err := rows.Scan(&chunk.DocumentID, &chunk.ID, &chunk.Text, &chunk.Ordinal, &metadataJSON, &score); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeStorage, "failed to scan search result", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
				return nil, services.NewDomainError(services.ErrorTypeStorage, "failed to unmarshal chunk metadata", err)
			}
		}
		results = append(results, models.ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStorage, "similarity search failed", err)
	}

	return results, nil
}

// DeleteByDocument removes every chunk belonging to the document. Deleting
// an absent document is a no-op.
func (s *VectorStore) DeleteByDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND document_id = $2`, s.cfg.Table)

	result, err := s.db.ExecContext(ctx, query, tenantID, documentID)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeStorage, "failed to delete document chunks", err).
			WithDetail("document_id", documentID)
	}

	if rows, err := result.RowsAffected(); err == nil {
		s.logger.Debug("document chunks deleted",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID),
			zap.Int64("chunks", rows))
	}

	return nil
}

// HealthCheck verifies the store is reachable
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.HealthCheck(ctx)
}

var _ repositories.VectorStore = (*VectorStore)(nil)
