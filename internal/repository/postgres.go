package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matchcore/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresCandidatePool serves candidate embeddings from the listing
// platform's database. It is a read-only view: rows are written by the
// platform's ingestion jobs, never by this subsystem, and may be stale.
type PostgresCandidatePool struct {
	db *sqlx.DB
}

// NewPostgresCandidatePool opens the pool connection
func NewPostgresCandidatePool(dsn string, maxConn, maxIdleConn int) (*PostgresCandidatePool, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresCandidatePool{db: db}, nil
}

// Close closes the database connection
func (p *PostgresCandidatePool) Close() error {
	return p.db.Close()
}

// GetCandidates returns candidates of the given kind matching the filter,
// newest first. Rows without an embedding are excluded; the ranker has
// nothing to score them by.
func (p *PostgresCandidatePool) GetCandidates(ctx context.Context, kind model.CandidateKind, filter *model.CandidateFilter) ([]model.CandidateEmbedding, error) {
	whereClauses := []string{"kind = $1", "embedding IS NOT NULL"}
	args := []interface{}{string(kind)}
	argIndex := 2

	limit := 200
	if filter != nil {
		if filter.Province != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("province ILIKE $%d", argIndex))
			args = append(args, "%"+*filter.Province+"%")
			argIndex++
		}
		if filter.PropertyType != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("property_type ILIKE $%d", argIndex))
			args = append(args, "%"+*filter.PropertyType+"%")
			argIndex++
		}
		if filter.Intent != nil {
			// Agents serve both intents; only property rows carry one
			if kind == model.CandidateProperty {
				whereClauses = append(whereClauses, fmt.Sprintf("intent = $%d", argIndex))
				args = append(args, string(*filter.Intent))
				argIndex++
			}
		}
		if filter.Limit > 0 {
			limit = filter.Limit
		}
	}

	query := fmt.Sprintf(`
		SELECT candidate_id, kind, name, metadata, embedding, created_at
		FROM candidate_embeddings
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, limit)

	var candidates []model.CandidateEmbedding
	if err := p.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	return candidates, nil
}
