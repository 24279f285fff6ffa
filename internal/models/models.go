package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one customer organization. Its ID doubles as the isolation
// key in the vector index and object storage.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ChannelConfig holds a tenant's messaging channel credentials. Verify
// tokens gate webhook subscription handshakes; access tokens send replies.
type ChannelConfig struct {
	TenantID         uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Platform         string    `json:"platform" db:"platform"`
	PageID           string    `json:"page_id" db:"page_id"`
	AccessToken      string    `json:"-" db:"access_token"`
	VerifyToken      string    `json:"-" db:"verify_token"`
	TelegramBotToken string    `json:"-" db:"telegram_bot_token"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// User is an admin account able to manage a tenant's knowledge base.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Knowledge item kinds.
const (
	ItemKindFile = "file"
	ItemKindURL  = "url"
)

// KnowledgeItem is one entry of a tenant's knowledge base: an uploaded
// file or a registered web source. Name is the display name; files are
// stored under StorageKey, which is unique per upload.
type KnowledgeItem struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Kind       string    `json:"kind" db:"kind"`
	Name       string    `json:"name" db:"name"`
	StorageKey string    `json:"-" db:"storage_key"`
	URL        string    `json:"url,omitempty" db:"url"`
	SizeBytes  int64     `json:"size_bytes,omitempty" db:"size_bytes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
