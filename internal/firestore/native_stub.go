//go:build firestore_rest

package firestore

import (
	"context"
	"errors"
	"net/http"

	"firesync/internal/auth"
)

const nativeAvailable = false

var errNativeUnavailable = errors.New("native firestore client not compiled in (built with firestore_rest)")

func newNativeTransport(context.Context, Endpoint, auth.Source, *http.Client) (Transport, error) {
	return nil, errNativeUnavailable
}
