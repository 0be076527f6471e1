package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Source hands out bearer tokens for one destination.
type Source interface {
	AccessToken(ctx context.Context) (AccessToken, error)
	Invalidate()
	Emulator() bool
}

// CredentialSource binds a TokenProvider to one service account.
type CredentialSource struct {
	provider   *TokenProvider
	credential *ServiceAccountCredential
}

func NewCredentialSource(provider *TokenProvider, credential *ServiceAccountCredential) *CredentialSource {
	return &CredentialSource{provider: provider, credential: credential}
}

func (s *CredentialSource) AccessToken(ctx context.Context) (AccessToken, error) {
	return s.provider.Token(ctx, s.credential)
}

func (s *CredentialSource) Invalidate() {
	s.provider.Invalidate(s.credential)
}

func (s *CredentialSource) Emulator() bool { return false }

// EmulatorSource is used against a local emulator, which accepts
// unauthenticated requests. It always returns the zero token.
type EmulatorSource struct{}

func (EmulatorSource) AccessToken(context.Context) (AccessToken, error) { return AccessToken{}, nil }

func (EmulatorSource) Invalidate() {}

func (EmulatorSource) Emulator() bool { return true }

// TokenSource adapts a Source to oauth2.TokenSource. Each call consults the
// source, so an invalidated token is replaced on the next request.
type TokenSource struct {
	ctx    context.Context
	source Source
}

func NewTokenSource(ctx context.Context, source Source) *TokenSource {
	return &TokenSource{ctx: ctx, source: source}
}

func (t *TokenSource) Token() (*oauth2.Token, error) {
	tok, err := t.source.AccessToken(t.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Value, TokenType: "Bearer", Expiry: tok.Expiry}, nil
}
