package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

const serviceAccountType = "service_account"

// ServiceAccountCredential is a parsed service account key file.
type ServiceAccountCredential struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`

	raw []byte
}

// ParseServiceAccountCredential validates a service account key. The private
// key must be a PEM encoded PKCS#8 or PKCS#1 RSA key.
func ParseServiceAccountCredential(data []byte) (*ServiceAccountCredential, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &CredentialError{Reason: "credential is empty"}
	}

	var cred ServiceAccountCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, &CredentialError{Reason: "credential is not valid JSON", Err: err}
	}

	if cred.Type != "" && cred.Type != serviceAccountType {
		return nil, &CredentialError{Reason: fmt.Sprintf("unsupported credential type %q", cred.Type)}
	}

	var missing []string
	if cred.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if cred.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return nil, &CredentialError{Reason: "missing required keys: " + strings.Join(missing, ", ")}
	}

	if err := validatePrivateKey(cred.PrivateKey); err != nil {
		return nil, &CredentialError{Reason: "private_key is not a usable RSA key", Err: err}
	}

	cred.raw = append([]byte(nil), data...)
	return &cred, nil
}

// LoadServiceAccountFile reads and parses a key file.
func LoadServiceAccountFile(path string) (*ServiceAccountCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialError{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	return ParseServiceAccountCredential(data)
}

// Identity is the cache key for tokens minted from this credential.
func (c *ServiceAccountCredential) Identity() string {
	return c.ClientEmail
}

// JSON returns the original key file bytes.
func (c *ServiceAccountCredential) JSON() []byte {
	return c.raw
}

func validatePrivateKey(key string) error {
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return fmt.Errorf("no PEM block found")
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if _, ok := parsed.(*rsa.PrivateKey); !ok {
			return fmt.Errorf("PKCS#8 key is %T, want RSA", parsed)
		}
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return fmt.Errorf("neither PKCS#8 nor PKCS#1: %w", err)
	}
	return nil
}
