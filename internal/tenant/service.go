// Package tenant manages tenant accounts, admin users and channel
// credentials in postgres.
package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dotstark/ragserve/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, slug, created_at, updated_at FROM tenants WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, slug, created_at, updated_at FROM tenants WHERE slug = $1", slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get tenant by slug: %w", err)
	}
	return &t, nil
}

func (s *Service) Create(ctx context.Context, name, slug string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (name, slug) VALUES ($1, $2)
		 RETURNING id, name, slug, created_at, updated_at`,
		name, slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &t, nil
}

func (s *Service) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, name, slug, created_at, updated_at FROM tenants ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Service) CreateUser(ctx context.Context, tenantID uuid.UUID, email, password, fullName string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var u models.User
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, password_hash, full_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, email, password_hash, full_name, created_at`,
		tenantID, email, string(hash), fullName,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, tenant_id, email, password_hash, full_name, created_at FROM users WHERE email = $1", email,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// VerifyPassword checks a login attempt against the stored hash.
func (s *Service) VerifyPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// GetChannelByPage resolves which tenant owns a Meta page or Instagram
// account, used to route incoming webhook events.
func (s *Service) GetChannelByPage(ctx context.Context, pageID string) (*models.ChannelConfig, error) {
	var c models.ChannelConfig
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, platform, page_id, access_token, verify_token, COALESCE(telegram_bot_token, ''), created_at
		 FROM channel_configs WHERE page_id = $1`, pageID,
	).Scan(&c.TenantID, &c.Platform, &c.PageID, &c.AccessToken, &c.VerifyToken, &c.TelegramBotToken, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get channel by page: %w", err)
	}
	return &c, nil
}

func (s *Service) GetChannel(ctx context.Context, tenantID uuid.UUID, platform string) (*models.ChannelConfig, error) {
	var c models.ChannelConfig
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, platform, page_id, access_token, verify_token, COALESCE(telegram_bot_token, ''), created_at
		 FROM channel_configs WHERE tenant_id = $1 AND platform = $2`, tenantID, platform,
	).Scan(&c.TenantID, &c.Platform, &c.PageID, &c.AccessToken, &c.VerifyToken, &c.TelegramBotToken, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &c, nil
}

func (s *Service) UpsertChannel(ctx context.Context, c *models.ChannelConfig) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO channel_configs (tenant_id, platform, page_id, access_token, verify_token, telegram_bot_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, platform)
		 DO UPDATE SET page_id = $3, access_token = $4, verify_token = $5, telegram_bot_token = $6`,
		c.TenantID, c.Platform, c.PageID, c.AccessToken, c.VerifyToken, c.TelegramBotToken,
	)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}
