// Package knowledge manages a tenant's knowledge base: uploaded files and
// registered URLs, with metadata in postgres and content in object storage.
// Every mutation schedules a re-index of the tenant.
package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dotstark/ragserve/internal/models"
	"github.com/dotstark/ragserve/internal/storage"
)

// ReindexScheduler queues a tenant rebuild. Implemented by the task queue
// client; failures are logged but never fail the mutation itself.
type ReindexScheduler interface {
	EnqueueReindex(ctx context.Context, tenantID string) error
}

type Service struct {
	db        *pgxpool.Pool
	files     *storage.KnowledgeFiles
	scheduler ReindexScheduler
}

func NewService(db *pgxpool.Pool, files *storage.KnowledgeFiles, scheduler ReindexScheduler) *Service {
	return &Service{db: db, files: files, scheduler: scheduler}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]models.KnowledgeItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, kind, name, COALESCE(url, ''), COALESCE(size_bytes, 0), created_at
		 FROM knowledge_items WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list knowledge items: %w", err)
	}
	defer rows.Close()

	var items []models.KnowledgeItem
	for rows.Next() {
		var item models.KnowledgeItem
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Kind, &item.Name, &item.URL, &item.SizeBytes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// storageKey prefixes the display name with a fresh uuid so repeated
// uploads of the same filename never share one object in the bucket.
func storageKey(name string) string {
	return uuid.NewString() + "_" + name
}

// AddFile stores an uploaded document and records it, then schedules a
// re-index so the new content becomes searchable.
func (s *Service) AddFile(ctx context.Context, tenantID uuid.UUID, name string, data []byte, contentType string) (*models.KnowledgeItem, error) {
	key := storageKey(name)
	if err := s.files.UploadDocument(ctx, tenantID.String(), key, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	var item models.KnowledgeItem
	err := s.db.QueryRow(ctx,
		`INSERT INTO knowledge_items (tenant_id, kind, name, storage_key, size_bytes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tenant_id, kind, name, COALESCE(url, ''), size_bytes, created_at`,
		tenantID, models.ItemKindFile, name, key, len(data),
	).Scan(&item.ID, &item.TenantID, &item.Kind, &item.Name, &item.URL, &item.SizeBytes, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record knowledge item: %w", err)
	}
	item.StorageKey = key

	s.scheduleReindex(ctx, tenantID)
	return &item, nil
}

// AddURL registers a web source in the tenant's URL registry and records
// it, then schedules a re-index.
func (s *Service) AddURL(ctx context.Context, tenantID uuid.UUID, url string) (*models.KnowledgeItem, error) {
	if err := s.files.AppendURL(ctx, tenantID.String(), url); err != nil {
		return nil, fmt.Errorf("register url: %w", err)
	}

	var item models.KnowledgeItem
	err := s.db.QueryRow(ctx,
		`INSERT INTO knowledge_items (tenant_id, kind, name, url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, kind, name, url, COALESCE(size_bytes, 0), created_at`,
		tenantID, models.ItemKindURL, url, url,
	).Scan(&item.ID, &item.TenantID, &item.Kind, &item.Name, &item.URL, &item.SizeBytes, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record knowledge item: %w", err)
	}

	s.scheduleReindex(ctx, tenantID)
	return &item, nil
}

// UpdateURL repoints a registered web source at a new address in both the
// registry and the item row, then schedules a re-index.
func (s *Service) UpdateURL(ctx context.Context, tenantID, itemID uuid.UUID, newURL string) (*models.KnowledgeItem, error) {
	var oldURL string
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(url, '') FROM knowledge_items
		 WHERE id = $1 AND tenant_id = $2 AND kind = $3`, itemID, tenantID, models.ItemKindURL,
	).Scan(&oldURL)
	if err != nil {
		return nil, fmt.Errorf("get knowledge item: %w", err)
	}

	if err := s.files.ReplaceURL(ctx, tenantID.String(), oldURL, newURL); err != nil {
		return nil, fmt.Errorf("update url registry: %w", err)
	}

	var item models.KnowledgeItem
	err = s.db.QueryRow(ctx,
		`UPDATE knowledge_items SET name = $1, url = $1
		 WHERE id = $2 AND tenant_id = $3
		 RETURNING id, tenant_id, kind, name, url, COALESCE(size_bytes, 0), created_at`,
		newURL, itemID, tenantID,
	).Scan(&item.ID, &item.TenantID, &item.Kind, &item.Name, &item.URL, &item.SizeBytes, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("update knowledge item: %w", err)
	}

	s.scheduleReindex(ctx, tenantID)
	return &item, nil
}

// Delete removes an item and its backing content, then schedules a
// re-index so stale chunks disappear from answers.
func (s *Service) Delete(ctx context.Context, tenantID, itemID uuid.UUID) error {
	var kind, name, key, url string
	err := s.db.QueryRow(ctx,
		`SELECT kind, name, COALESCE(storage_key, ''), COALESCE(url, '') FROM knowledge_items
		 WHERE id = $1 AND tenant_id = $2`, itemID, tenantID,
	).Scan(&kind, &name, &key, &url)
	if err != nil {
		return fmt.Errorf("get knowledge item: %w", err)
	}

	switch kind {
	case models.ItemKindFile:
		if key == "" {
			key = name
		}
		if err := s.files.DeleteDocument(ctx, tenantID.String(), key); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	case models.ItemKindURL:
		if err := s.files.RemoveURL(ctx, tenantID.String(), url); err != nil {
			return fmt.Errorf("deregister url: %w", err)
		}
	}

	if _, err := s.db.Exec(ctx,
		"DELETE FROM knowledge_items WHERE id = $1 AND tenant_id = $2", itemID, tenantID); err != nil {
		return fmt.Errorf("delete knowledge item: %w", err)
	}

	s.scheduleReindex(ctx, tenantID)
	return nil
}

func (s *Service) scheduleReindex(ctx context.Context, tenantID uuid.UUID) {
	if err := s.scheduler.EnqueueReindex(ctx, tenantID.String()); err != nil {
		slog.Error("failed to schedule reindex", "tenant_id", tenantID, "error", err)
	}
}
