package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mobilebackend/internal/auth"
	"github.com/utafrali/mobilebackend/internal/domain"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
}

func TestTokenIssuer_RegenerateRotatesSession(t *testing.T) {
	users := new(mockUserRepository)
	users.On("GetByID", mock.Anything, "user-1").Return(&domain.User{ID: "user-1", IsActive: true}, nil)
	sessions := newFakeSessions()
	issuer := NewTokenIssuer(sessions, users, newTestJWTManager())
	ctx := context.Background()

	first, err := issuer.Regenerate(ctx, "user-1")
	require.NoError(t, err)
	claims, err := issuer.Validate(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	second, err := issuer.Regenerate(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = issuer.Validate(ctx, first)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	claims2, err := issuer.Validate(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, claims.TokenID, claims2.TokenID)
}

func TestTokenIssuer_Revoke(t *testing.T) {
	users := new(mockUserRepository)
	users.On("GetByID", mock.Anything, "user-1").Return(&domain.User{ID: "user-1", IsActive: true}, nil)
	issuer := NewTokenIssuer(newFakeSessions(), users, newTestJWTManager())
	ctx := context.Background()

	token, err := issuer.Regenerate(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, issuer.Revoke(ctx, "user-1"))

	_, err = issuer.Validate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestTokenIssuer_ValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		user *domain.User
		err  error
	}{
		{"disabled user", &domain.User{ID: "user-1", IsActive: false}, nil},
		{"deleted user", nil, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mockUserRepository)
			if tt.user != nil {
				users.On("GetByID", mock.Anything, "user-1").Return(tt.user, nil)
			} else {
				users.On("GetByID", mock.Anything, "user-1").Return(nil, tt.err)
			}
			issuer := NewTokenIssuer(newFakeSessions(), users, newTestJWTManager())

			token, err := issuer.Regenerate(context.Background(), "user-1")
			require.NoError(t, err)

			_, err = issuer.Validate(context.Background(), token)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestTokenIssuer_ValidateMalformed(t *testing.T) {
	users := new(mockUserRepository)
	issuer := NewTokenIssuer(newFakeSessions(), users, newTestJWTManager())

	_, err := issuer.Validate(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
