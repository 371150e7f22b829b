package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propchain/upkeep/models"
)

const testSecret = "test_secret_key_that_is_long_enough_123456"

var (
	userID = uuid.MustParse("770e8400-e29b-41d4-a716-446655440000")
	orgID  = uuid.MustParse("660e8400-e29b-41d4-a716-446655440000")
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, c *clock) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Secret:     testSecret,
		Issuer:     "propchain-api",
		Audience:   "propchain-app",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        c.Now,
	})
	require.NoError(t, err)
	return svc
}

func testPrincipal() *models.Principal {
	return &models.Principal{
		UserID:         userID,
		Email:          "admin@acme-property.com",
		OrganizationID: orgID,
		Role:           models.RoleOrgAdmin,
		Permissions:    []string{"org.*"},
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(Options{AccessTTL: time.Hour, RefreshTTL: 2 * time.Hour})
	assert.Error(t, err, "secret is required")

	_, err = NewService(Options{Secret: testSecret})
	assert.Error(t, err, "ttls are required")
}

func TestIssueAccessToken(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, c)

	tok, expiresAt, err := svc.IssueAccessToken(testPrincipal(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, c.now.Add(time.Hour), expiresAt)

	claims, err := svc.VerifyAccess(tok)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "admin@acme-property.com", claims.Email)
	assert.Equal(t, orgID.String(), claims.OrganizationID)
	assert.Equal(t, models.RoleOrgAdmin, claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.Equal(t, "propchain-api", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"propchain-app"}, claims.Audience)
	assert.Equal(t, c.now, claims.IssuedAt.Time.UTC())

	id, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, id)

	t.Run("nil principal", func(t *testing.T) {
		_, _, err := svc.IssueAccessToken(nil, "")
		assert.Error(t, err)
	})
}

func TestIssueRefreshToken(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, c)

	tok, expiresAt, err := svc.IssueRefreshToken(userID, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, c.now.Add(7*24*time.Hour), expiresAt)

	claims, err := svc.VerifyRefresh(tok)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Empty(t, claims.Email)

	_, _, err = svc.IssueRefreshToken(uuid.Nil, "")
	assert.Error(t, err)
}

func TestVerify_Expiry(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, c)

	tok, expiresAt, err := svc.IssueAccessToken(testPrincipal(), "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just issued", c.now, false},
		{"one second before expiry", expiresAt.Add(-time.Second), false},
		{"exactly at expiry", expiresAt, true},
		{"after expiry", expiresAt.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = tt.at
			_, err := svc.Verify(tok)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerify_Rejections(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, c)

	good, _, err := svc.IssueAccessToken(testPrincipal(), "")
	require.NoError(t, err)

	other, err := NewService(Options{
		Secret: "a_completely_different_secret_of_enough_len", Issuer: "propchain-api", Audience: "propchain-app",
		AccessTTL: time.Hour, RefreshTTL: 2 * time.Hour, Now: c.Now,
	})
	require.NoError(t, err)
	foreign, _, err := other.IssueAccessToken(testPrincipal(), "")
	require.NoError(t, err)

	wrongIssuer, err := NewService(Options{
		Secret: testSecret, Issuer: "someone-else", Audience: "propchain-app",
		AccessTTL: time.Hour, RefreshTTL: 2 * time.Hour, Now: c.Now,
	})
	require.NoError(t, err)
	misissued, _, err := wrongIssuer.IssueAccessToken(testPrincipal(), "")
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "propchain-api",
			Audience:  jwt.ClaimStrings{"propchain-app"},
			ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
		},
	})
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"wrong issuer", misissued},
		{"alg none", unsigned},
		{"tampered payload", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_TypeMismatch(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, c)

	access, _, err := svc.IssueAccessToken(testPrincipal(), "")
	require.NoError(t, err)
	refresh, _, err := svc.IssueRefreshToken(userID, "")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType, "a refresh token is not an access token")

	_, err = svc.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}
