package contract

import (
	"context"
	"errors"
)

// ErrCredentialNotFound is returned by Get when the key holds no value.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore is one physical location of the client session.
// Delete must be idempotent: removing an absent key is not an error.
type CredentialStore interface {
	Name() string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
