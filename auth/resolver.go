package auth

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"net/http"
	"strings"
)

var _ contract.IdentityResolver = (*TokenResolver)(nil)

const (
	bearerPrefix = "Bearer "
	// TokenCookie and TokenQuery carry the credential for browser websocket clients,
	// which cannot set an Authorization header.
	TokenCookie = "token"
	TokenQuery  = "token"
)

// TokenResolver derives the connection identity from a signed token.
type TokenResolver struct {
	tokens *TokenService
}

func NewTokenResolver(tokens *TokenService) *TokenResolver {
	return &TokenResolver{tokens: tokens}
}

func (r *TokenResolver) CurrentIdentity(_ context.Context, credential string) (chat.Identity, error) {
	token := strings.TrimSpace(strings.TrimPrefix(credential, bearerPrefix))
	if token == "" {
		return "", fmt.Errorf("%w: credential is missing", errors.ErrAuth)
	}
	claims, err := r.tokens.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: token carries no user", errors.ErrAuth)
	}
	return chat.Identity(claims.UserID), nil
}

// CredentialFromRequest looks for a token in the Authorization header, then the
// token cookie, then the token query parameter.
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(TokenQuery)
}
