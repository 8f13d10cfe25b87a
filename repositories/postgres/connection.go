package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/config"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool against the vector store
// URL. The URL is validated for scheme and shape before it reaches the
// driver; unreachable stores surface as a storage domain error.
func NewDB(cfg config.VectorStoreConfig, logger *zap.Logger) (*DB, error) {
	if err := models.ValidateConnectionURL(cfg.ConnectionURL); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStorage, "invalid vector store connection string", err)
	}

	db, err := sql.Open("postgres", cfg.ConnectionURL)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeStorage, "vector store connection failed", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.NewDomainError(services.ErrorTypeStorage, "vector store connection failed", err)
	}

	logger.Info("vector store connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing vector store connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
