// Package auth issues and verifies the HMAC-signed API keys the collector
// accepts from clients.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HeaderAPIKey carries the key on every collector request.
const HeaderAPIKey = "X-API-Key"

var (
	ErrMissingKey       = errors.New("missing api key")
	ErrMalformedKey     = errors.New("invalid api key format")
	ErrInvalidSignature = errors.New("invalid signature")
)

// IssueAPIKey generates an API key for clientID signed with secret.
// Format: clientID.signature
func IssueAPIKey(clientID string, secret []byte) string {
	return fmt.Sprintf("%s.%s", clientID, sign(clientID, secret))
}

// VerifyAPIKey verifies the API key against the secret.
// Returns valid bool and the extracted clientID if valid.
func VerifyAPIKey(apiKey string, secret []byte) (bool, string, error) {
	clientID, providedSig, ok := strings.Cut(apiKey, ".")
	if !ok || clientID == "" || strings.Contains(providedSig, ".") {
		return false, "", ErrMalformedKey
	}

	if hmac.Equal([]byte(providedSig), []byte(sign(clientID, secret))) {
		return true, clientID, nil
	}
	return false, "", ErrInvalidSignature
}

func sign(clientID string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(clientID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verifier checks an API key and returns the client it was issued to.
type Verifier func(apiKey string) (bool, string, error)

// SecretVerifier returns a Verifier bound to secret.
func SecretVerifier(secret []byte) Verifier {
	return func(apiKey string) (bool, string, error) {
		return VerifyAPIKey(apiKey, secret)
	}
}

type clientIDKey struct{}

// ClientID returns the client authenticated by Middleware, if any.
func ClientID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok
}

// WithClientID returns a context carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// Middleware rejects requests without a valid X-API-Key with 401 and stores
// the client id in the request context otherwise.
func Middleware(verify Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(HeaderAPIKey)
			if apiKey == "" {
				http.Error(w, "Missing API Key", http.StatusUnauthorized)
				return
			}

			valid, clientID, err := verify(apiKey)
			if !valid || err != nil {
				http.Error(w, "Invalid API Key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}
