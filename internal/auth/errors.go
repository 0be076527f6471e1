package auth

import (
	"errors"
	"fmt"
)

var (
	ErrCredential   = errors.New("invalid service account credential")
	ErrAuthExchange = errors.New("access token exchange failed")
)

// CredentialError reports a credential that cannot be used: unparsable JSON,
// missing keys or unusable private key material.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCredential, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrCredential, e.Reason)
}

func (e *CredentialError) Unwrap() error { return e.Err }

func (e *CredentialError) Is(target error) bool { return target == ErrCredential }

// AuthExchangeError reports a token endpoint that rejected the assertion or
// could not be reached. StatusCode is zero for network failures.
type AuthExchangeError struct {
	ClientEmail string
	StatusCode  int
	Err         error
}

func (e *AuthExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s for %s (HTTP %d): %v", ErrAuthExchange, e.ClientEmail, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", ErrAuthExchange, e.ClientEmail, e.Err)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

func (e *AuthExchangeError) Is(target error) bool { return target == ErrAuthExchange }
