package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_long_enough_for_hs256"

func TestTokenService_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenService(testSecret, "chat-relay")

	token, err := tokens.GenerateToken("user-123", []string{"user"}, time.Hour)
	req.NoError(err)

	claims, err := tokens.ValidateToken(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
}

func TestTokenService_Rejects(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenService(testSecret, "chat-relay")

	expired, err := tokens.GenerateToken("user-123", nil, -time.Minute)
	req.NoError(err)
	otherIssuer, err := NewTokenService(testSecret, "someone-else").GenerateToken("user-123", nil, time.Hour)
	req.NoError(err)
	otherSecret, err := NewTokenService("another_secret_long_enough_too", "chat-relay").GenerateToken("user-123", nil, time.Hour)
	req.NoError(err)

	for name, token := range map[string]string{
		"expired":      expired,
		"other issuer": otherIssuer,
		"other secret": otherSecret,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.ValidateToken(token)
			require.Error(t, err)
		})
	}
}

func TestTokenResolver_CurrentIdentity(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenService(testSecret, "chat-relay")
	resolver := NewTokenResolver(tokens)
	token, err := tokens.GenerateToken("alice", nil, time.Hour)
	req.NoError(err)

	// Given a bearer credential
	identity, err := resolver.CurrentIdentity(context.Background(), "Bearer "+token)
	req.NoError(err)
	req.Equal(chat.Identity("alice"), identity)

	// Given a raw token
	identity, err = resolver.CurrentIdentity(context.Background(), token)
	req.NoError(err)
	req.Equal(chat.Identity("alice"), identity)

	// Given no credential at all
	_, err = resolver.CurrentIdentity(context.Background(), "")
	req.ErrorIs(err, errors.ErrAuth)

	// Given an invalid credential
	_, err = resolver.CurrentIdentity(context.Background(), "Bearer nope")
	req.ErrorIs(err, errors.ErrAuth)
}

func TestTokenResolver_Token_Without_User(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenService(testSecret, "chat-relay")
	token, err := tokens.GenerateToken("", nil, time.Hour)
	req.NoError(err)

	_, err = NewTokenResolver(tokens).CurrentIdentity(context.Background(), token)

	req.ErrorIs(err, errors.ErrAuth)
}

func TestCredentialFromRequest(t *testing.T) {
	req := require.New(t)

	header := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	header.Header.Set("Authorization", "Bearer header")
	header.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie"})
	req.Equal("Bearer header", CredentialFromRequest(header))

	cookie := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	cookie.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie"})
	req.Equal("cookie", CredentialFromRequest(cookie))

	query := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	req.Equal("query", CredentialFromRequest(query))

	req.Empty(CredentialFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}
