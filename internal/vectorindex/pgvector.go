package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorBackend keeps the shared index in a single pgvector table. The
// "bucket" maps to the pgvector extension itself and the index to the
// knowledge_vectors table.
type PgVectorBackend struct {
	db        *pgxpool.Pool
	dimension int
}

func NewPgVectorBackend(db *pgxpool.Pool, dimension int) *PgVectorBackend {
	return &PgVectorBackend{db: db, dimension: dimension}
}

func (b *PgVectorBackend) EnsureBucket(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return pgError(err)
	}
	return nil
}

func (b *PgVectorBackend) CreateIndex(ctx context.Context) error {
	_, err := b.db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE knowledge_vectors (
			key UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			content_preview TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, b.dimension))
	if err != nil {
		return pgError(err)
	}

	_, err = b.db.Exec(ctx,
		"CREATE INDEX knowledge_vectors_tenant_idx ON knowledge_vectors (tenant_id)")
	if err != nil {
		return pgError(err)
	}

	_, err = b.db.Exec(ctx,
		"CREATE INDEX knowledge_vectors_embedding_idx ON knowledge_vectors USING hnsw (embedding vector_cosine_ops)")
	if err != nil {
		return pgError(err)
	}
	return nil
}

func (b *PgVectorBackend) Put(ctx context.Context, records []Record) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_vectors (key, tenant_id, source, content_preview, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (key) DO UPDATE SET tenant_id = $2, source = $3, content_preview = $4, embedding = $5`,
			r.Key, r.Meta.TenantID, r.Meta.Source, r.Meta.ContentPreview, pgvector.NewVector(r.Vector),
		)
		if err != nil {
			return pgError(err)
		}
	}

	return tx.Commit(ctx)
}

func (b *PgVectorBackend) Query(ctx context.Context, q Query) (*Page, error) {
	if q.Vector == nil {
		return b.scan(ctx, q)
	}

	rows, err := b.db.Query(ctx,
		`SELECT key, tenant_id, source, content_preview, embedding <=> $1 AS distance
		 FROM knowledge_vectors
		 WHERE tenant_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(q.Vector), q.TenantID, q.TopK,
	)
	if err != nil {
		return nil, pgError(err)
	}
	defer rows.Close()

	page := &Page{}
	for rows.Next() {
		var m Match
		var meta Metadata
		if err := rows.Scan(&m.Key, &meta.TenantID, &meta.Source, &meta.ContentPreview, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if q.WithMetadata {
			m.Meta = meta
		}
		page.Matches = append(page.Matches, m)
	}
	return page, rows.Err()
}

// scan pages through a tenant's keys ordered by key. The continuation token
// is a numeric offset.
func (b *PgVectorBackend) scan(ctx context.Context, q Query) (*Page, error) {
	offset := 0
	if q.NextToken != "" {
		n, err := strconv.Atoi(q.NextToken)
		if err != nil {
			return nil, fmt.Errorf("bad continuation token %q: %w", q.NextToken, err)
		}
		offset = n
	}

	rows, err := b.db.Query(ctx,
		`SELECT key, tenant_id, source, content_preview
		 FROM knowledge_vectors
		 WHERE tenant_id = $1
		 ORDER BY key
		 LIMIT $2 OFFSET $3`,
		q.TenantID, q.TopK, offset,
	)
	if err != nil {
		return nil, pgError(err)
	}
	defer rows.Close()

	page := &Page{}
	for rows.Next() {
		var m Match
		var meta Metadata
		if err := rows.Scan(&m.Key, &meta.TenantID, &meta.Source, &meta.ContentPreview); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if q.WithMetadata {
			m.Meta = meta
		}
		page.Matches = append(page.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Matches) == q.TopK {
		page.NextToken = strconv.Itoa(offset + len(page.Matches))
	}
	return page, nil
}

func (b *PgVectorBackend) Delete(ctx context.Context, keys []string) error {
	_, err := b.db.Exec(ctx, "DELETE FROM knowledge_vectors WHERE key = ANY($1)", keys)
	if err != nil {
		return pgError(err)
	}
	return nil
}

// pgError maps postgres error codes: 42P01 (undefined_table) means the
// index was never created, 42P07 (duplicate_table) means a concurrent
// creator won the race.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01":
			return fmt.Errorf("%w: %v", ErrIndexNotReady, err)
		case "42P07":
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
