package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/repositories"
	"github.com/vectorgate/vectorgate/services"
	"github.com/vectorgate/vectorgate/services/chunker"
	"github.com/vectorgate/vectorgate/services/providers"
)

// Service orchestrates the ingestion and query paths: chunk, embed and
// store on the way in; embed, search and optionally generate on the way
// out. Tenant resolution and rate limiting happen before any call reaches
// this service.
type Service struct {
	store     repositories.VectorStore
	embedder  providers.Embedder
	generator providers.Generator
	splitter  *chunker.Splitter
	logger    *zap.Logger
}

// NewService creates a new pipeline service
func NewService(
	store repositories.VectorStore,
	embedder providers.Embedder,
	generator providers.Generator,
	splitter *chunker.Splitter,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		embedder:  embedder,
		generator: generator,
		splitter:  splitter,
		logger:    logger,
	}
}

// Ingest chunks a document, embeds every chunk and upserts the result,
// replacing any previously ingested version of the document. Ingestion is
// all-or-nothing per document: the upsert is deferred until every embedding
// has succeeded, and a failed upsert removes whatever the failed
// transaction may have left behind.
func (s *Service) Ingest(ctx context.Context, tenantID uuid.UUID, req models.IngestRequest) (*models.IngestSummary, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "document text cannot be empty", nil)
	}
	if req.DocumentID == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "document id is required", nil)
	}

	texts := s.splitter.Split(req.Text)

	s.logger.Debug("document chunked",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", req.DocumentID),
		zap.Int("chunks", len(texts)))

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeEmbedding, "embedding generation failed", err).
			WithDetail("document_id", req.DocumentID)
	}
	if len(vectors) != len(texts) {
		return nil, services.NewDomainError(services.ErrorTypeEmbedding, "embedding count mismatch", nil).
			WithDetail("document_id", req.DocumentID)
	}

	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:         chunkID(req.DocumentID, i),
			DocumentID: req.DocumentID,
			Text:       text,
			Ordinal:    i,
			Embedding:  vectors[i],
			Metadata:   req.Metadata,
		}
	}

	// drop the previous version first so a shrinking document does not
	// leave stale higher-ordinal chunks behind
	if err := s.store.DeleteByDocument(ctx, tenantID, req.DocumentID); err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, tenantID, chunks); err != nil {
		// the transaction rolls back on failure, but clean up in case a
		// partial write survived so no chunks reference this attempt
		if cleanupErr := s.store.DeleteByDocument(ctx, tenantID, req.DocumentID); cleanupErr != nil {
			s.logger.Warn("failed to clean up after failed upsert",
				zap.String("tenant_id", tenantID.String()),
				zap.String("document_id", req.DocumentID),
				zap.Error(cleanupErr))
		}
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", req.DocumentID),
		zap.Int("chunks", len(chunks)))

	return &models.IngestSummary{
		DocumentID: req.DocumentID,
		Chunks:     len(chunks),
	}, nil
}

// Query embeds the query text, searches the store and, when requested,
// generates an answer grounded in the retrieved chunks. When generation
// fails the already-retrieved sources are still returned alongside the
// error so callers can surface partial success.
func (s *Service) Query(ctx context.Context, tenantID uuid.UUID, text string, opts models.QueryOptions) (*models.QueryResult, error) {
	sources, err := s.Retrieve(ctx, tenantID, text, opts.RetrievalLimit)
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{Sources: sources}
	if !opts.Generate {
		return result, nil
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(text, sources), opts.MaxTokens)
	if err != nil {
		genErr := services.NewDomainError(services.ErrorTypeGeneration, "answer generation failed", err)
		return result, genErr
	}

	result.Answer = answer
	return result, nil
}

// Retrieve is the pure retrieval path: embed and search, no generation.
// limit 0 applies the default; a negative limit is invalid.
func (s *Service) Retrieve(ctx context.Context, tenantID uuid.UUID, text string, limit int) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "query text cannot be empty", nil)
	}
	if limit == 0 {
		limit = models.DefaultRetrievalLimit
	}
	if limit < 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "retrieval limit must be positive", nil).
			WithDetail("limit", limit)
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeEmbedding, "embedding generation failed", err)
	}
	if len(vectors) != 1 {
		return nil, services.NewDomainError(services.ErrorTypeEmbedding, "embedding count mismatch", nil)
	}

	return s.store.SimilaritySearch(ctx, tenantID, vectors[0], limit, nil)
}

// DeleteDocument removes every stored chunk of a document
func (s *Service) DeleteDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error {
	if documentID == "" {
		return services.NewDomainError(services.ErrorTypeValidation, "document id is required", nil)
	}
	return s.store.DeleteByDocument(ctx, tenantID, documentID)
}

// chunkID derives a stable chunk identifier from the document and
// ordinal, so re-ingesting a document replaces its chunks in place.
func chunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s#%04d", documentID, ordinal)
}

// buildPrompt assembles a grounded generation prompt from the query and
// its retrieved context.
func buildPrompt(query string, sources []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. If the context does not contain the answer, say so.\n\nContext:\n")
	for i, source := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, source.Chunk.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}
