package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"done/internal/credentials"
)

// Load returns the stored token. A secret that is not a JSON token (an
// access token exported through the environment) is used as a bearer token
// without refresh.
func (s *Store) Load(ctx context.Context) (*oauth2.Token, error) {
	info, err := s.creds.Get(ctx, s.backend, credentials.DefaultAccount)
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", s.backend, err)
	}
	if !info.Found {
		return nil, ErrNoToken
	}

	secret := strings.TrimSpace(info.Secret)
	if !strings.HasPrefix(secret, "{") {
		return &oauth2.Token{AccessToken: secret, TokenType: "Bearer"}, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(secret), &tok); err != nil {
		return nil, fmt.Errorf("decode %s token: %w", s.backend, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Save stores tok as JSON.
func (s *Store) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.creds.Set(ctx, s.backend, credentials.DefaultAccount, string(data))
}

// Delete removes the stored token.
func (s *Store) Delete(ctx context.Context) error {
	return s.creds.Delete(ctx, s.backend, credentials.DefaultAccount)
}

// HasToken reports whether Load would find a token.
func (s *Store) HasToken(ctx context.Context) bool {
	_, err := s.Load(ctx)
	return err == nil
}
