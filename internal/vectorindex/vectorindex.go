// Package vectorindex owns the shared, multi-tenant vector index: idempotent
// provisioning, batched writes, tenant-filtered queries and paginated
// tenant-wide deletes.
//
// One index serves the whole deployment. Tenant isolation is purely a
// filter-correctness invariant: every query and delete path MUST carry the
// tenant filter.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrIndexNotReady is returned by backends when the index (or its bucket/
// collection/table) has not been created yet. Readers treat it as an empty
// result, never as a failure.
var ErrIndexNotReady = errors.New("vector index not ready")

// ErrConflict is returned by backends when index creation collides with a
// concurrent creator. The manager treats it as success.
var ErrConflict = errors.New("vector index already exists")

// Metadata is stored alongside every vector. TenantID and Source are
// filterable; ContentPreview carries the chunk text used at answer time.
type Metadata struct {
	TenantID       string
	Source         string
	ContentPreview string
}

// Record is one embedded chunk keyed by an opaque unique id.
type Record struct {
	Key    string
	Vector []float32
	Meta   Metadata
}

// Match is a query hit. Distance is the backend's similarity distance,
// smaller meaning closer.
type Match struct {
	Key      string
	Distance float32
	Meta     Metadata
}

// Query describes one page of a backend lookup. A nil Vector requests a
// metadata-only scan of records matching the tenant filter, paginated via
// NextToken; a non-nil Vector requests a single top-k similarity page.
type Query struct {
	TenantID     string
	Vector       []float32
	TopK         int
	NextToken    string
	WithMetadata bool
}

// Page is one backend result page. NextToken is empty on the last page.
type Page struct {
	Matches   []Match
	NextToken string
}

// Backend is the set of vector-store operations the manager consumes.
// Implementations translate their native error codes into ErrIndexNotReady
// and ErrConflict; any other error is fatal to the caller's operation.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	CreateIndex(ctx context.Context) error
	Put(ctx context.Context, records []Record) error
	Query(ctx context.Context, q Query) (*Page, error)
	Delete(ctx context.Context, keys []string) error
}

const (
	putBatchSize    = 500 // backend put-vectors cap
	deleteBatchSize = 100 // backend delete-vectors cap
	scanPageSize    = 30  // backend query page cap

	// sentinelKey is the probe record's key. Kept in UUID form because
	// some backends only accept UUID point ids.
	sentinelKey = "00000000-0000-0000-0000-000000000000"
)

type Manager struct {
	backend   Backend
	dimension int
}

func NewManager(backend Backend, dimension int) *Manager {
	return &Manager{backend: backend, dimension: dimension}
}

// EnsureIndex guarantees the shared bucket and index exist. It is safe to
// call on every request path and under concurrent callers from multiple
// processes: existence is probed with a sentinel write-then-delete, and a
// creation race losing to another process counts as success.
func (m *Manager) EnsureIndex(ctx context.Context) error {
	if err := m.backend.EnsureBucket(ctx); err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("ensure vector bucket: %w", err)
	}

	// Cosine backends reject zero-norm vectors, so the probe carries a
	// single non-zero component.
	probeVec := make([]float32, m.dimension)
	probeVec[0] = 1
	probe := Record{
		Key:    sentinelKey,
		Vector: probeVec,
		Meta:   Metadata{TenantID: "0"},
	}
	err := m.backend.Put(ctx, []Record{probe})
	if err == nil {
		if derr := m.backend.Delete(ctx, []string{sentinelKey}); derr != nil {
			slog.Warn("failed to remove index probe record", "error", derr)
		}
		return nil
	}
	if !errors.Is(err, ErrIndexNotReady) {
		return fmt.Errorf("probe vector index: %w", err)
	}

	if err := m.backend.CreateIndex(ctx); err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Info("vector index already created by another process")
			return nil
		}
		return fmt.Errorf("create vector index: %w", err)
	}
	slog.Info("vector index created", "dimension", m.dimension)
	return nil
}

// Upsert writes records in batches of at most 500. There is no rollback:
// a failure mid-sequence leaves earlier batches committed, and the next
// full re-index is the recovery path.
func (m *Manager) Upsert(ctx context.Context, tenantID string, records []Record) error {
	for _, r := range records {
		if r.Meta.TenantID != tenantID {
			return fmt.Errorf("record %s tagged %q, want tenant %q", r.Key, r.Meta.TenantID, tenantID)
		}
	}

	for i := 0; i < len(records); i += putBatchSize {
		end := i + putBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := m.backend.Put(ctx, records[i:end]); err != nil {
			return fmt.Errorf("put batch %d: %w", i/putBatchSize, err)
		}
	}
	return nil
}

// DeleteAll removes every record tagged with tenantID. The backend exposes
// no delete-by-filter, so this scans key pages with the tenant filter until
// exhausted, then deletes in batches of at most 100. A not-yet-created
// index is a no-op.
func (m *Manager) DeleteAll(ctx context.Context, tenantID string) error {
	var keys []string
	token := ""
	for {
		page, err := m.backend.Query(ctx, Query{
			TenantID:  tenantID,
			TopK:      scanPageSize,
			NextToken: token,
		})
		if err != nil {
			if errors.Is(err, ErrIndexNotReady) {
				return nil
			}
			return fmt.Errorf("scan tenant %s vectors: %w", tenantID, err)
		}
		for _, match := range page.Matches {
			keys = append(keys, match.Key)
		}
		token = page.NextToken
		if token == "" {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	for i := 0; i < len(keys); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := m.backend.Delete(ctx, keys[i:end]); err != nil {
			return fmt.Errorf("delete batch %d: %w", i/deleteBatchSize, err)
		}
	}

	slog.Info("deleted tenant vectors", "tenant_id", tenantID, "count", len(keys))
	return nil
}

// Query runs a tenant-filtered nearest-neighbor search, returning up to
// topK matches ordered closest first. A not-yet-created index yields an
// empty result, not an error.
func (m *Manager) Query(ctx context.Context, tenantID string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 8
	}

	page, err := m.backend.Query(ctx, Query{
		TenantID:     tenantID,
		Vector:       vector,
		TopK:         topK,
		WithMetadata: true,
	})
	if err != nil {
		if errors.Is(err, ErrIndexNotReady) {
			return nil, nil
		}
		return nil, fmt.Errorf("query tenant %s vectors: %w", tenantID, err)
	}
	return page.Matches, nil
}
