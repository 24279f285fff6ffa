package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotstark/ragserve/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Email:    "admin@example.com",
	}
}

func TestIssueAndParseToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	user := testUser()

	token, err := svc.IssueToken(user)
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Sub)
	assert.Equal(t, user.TenantID.String(), claims.TenantID)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).IssueToken(testUser())
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)
	token, err := svc.IssueToken(testUser())
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.Error(t, err)
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	user := testUser()
	token, err := svc.IssueToken(user)
	require.NoError(t, err)

	var gotClaims *Claims
	handler := svc.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, user.TenantID.String(), gotClaims.TenantID)
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	handler := svc.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateGarbageToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	handler := svc.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
