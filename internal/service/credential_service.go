package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalog-lens/internal/entity"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"

	"github.com/go-playground/validator/v10"
)

const credentialModule = "Credential"

// CredentialResolver reads and writes the client session across an ordered
// list of stores. Reads return the first store holding a usable value; writes
// and deletes fan out to every store. The stores are not kept consistent with
// each other beyond that.
type CredentialResolver struct {
	stores   []contract.CredentialStore
	logger   logger.ILogger
	validate *validator.Validate
}

// StoreSnapshot reports what a single store currently holds.
type StoreSnapshot struct {
	Store    string       `json:"store"`
	HasToken bool         `json:"hasToken"`
	User     *entity.User `json:"user,omitempty"`
	UserErr  string       `json:"userError,omitempty"`
}

func NewCredentialResolver(log logger.ILogger, stores ...contract.CredentialStore) *CredentialResolver {
	return &CredentialResolver{
		stores:   stores,
		logger:   log,
		validate: validator.New(),
	}
}

// WithStores returns a resolver sharing logger and validator but reading from
// a different store list. Used to bind a per-request cookie store.
func (r *CredentialResolver) WithStores(stores ...contract.CredentialStore) *CredentialResolver {
	return &CredentialResolver{stores: stores, logger: r.logger, validate: r.validate}
}

func (r *CredentialResolver) Token(ctx context.Context) (string, bool) {
	for _, s := range r.stores {
		value, ok := r.read(ctx, s, entity.CredentialKeyToken)
		if ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func (r *CredentialResolver) User(ctx context.Context) (*entity.User, bool) {
	for _, s := range r.stores {
		raw, ok := r.read(ctx, s, entity.CredentialKeyUser)
		if !ok {
			continue
		}
		user, err := decodeUser(raw)
		if err != nil {
			r.logger.Warn(credentialModule, "Discarding malformed user record", map[string]interface{}{
				"store": s.Name(),
				"error": err.Error(),
			})
			continue
		}
		return user, true
	}
	return nil, false
}

// IsLoggedIn only checks that a token is held; it never asks the backend.
func (r *CredentialResolver) IsLoggedIn(ctx context.Context) bool {
	_, ok := r.Token(ctx)
	return ok
}

func (r *CredentialResolver) Role(ctx context.Context) (entity.UserRole, bool) {
	user, ok := r.User(ctx)
	if !ok {
		return "", false
	}
	return user.Role, true
}

// Save writes the session to every store. All stores are attempted even when
// one fails; the joined error is returned.
func (r *CredentialResolver) Save(ctx context.Context, session entity.Session) error {
	if err := r.validate.Struct(session); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	var errs []error
	for _, s := range r.stores {
		if err := s.Set(ctx, entity.CredentialKeyToken, session.Token); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if err := s.Set(ctx, entity.CredentialKeyUser, string(userJSON)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.logger.Info(credentialModule, "Session saved", map[string]interface{}{
		"role":   session.User.Role,
		"stores": len(r.stores),
	})
	return nil
}

// Logout clears the session from every store. Clearing an absent entry is a
// no-op; failures are logged and returned, but every store is attempted.
// Navigating away is the caller's job.
func (r *CredentialResolver) Logout(ctx context.Context) error {
	var errs []error
	for _, s := range r.stores {
		for _, key := range []string{entity.CredentialKeyToken, entity.CredentialKeyUser} {
			if err := s.Delete(ctx, key); err != nil {
				r.logger.Error(credentialModule, "Failed to clear credential", map[string]interface{}{
					"store": s.Name(),
					"key":   key,
					"error": err.Error(),
				})
				errs = append(errs, fmt.Errorf("%s/%s: %w", s.Name(), key, err))
			}
		}
	}
	r.logger.Info(credentialModule, "Session cleared", nil)
	return errors.Join(errs...)
}

// Snapshot reports per-store contents for the debug panel.
func (r *CredentialResolver) Snapshot(ctx context.Context) []StoreSnapshot {
	out := make([]StoreSnapshot, 0, len(r.stores))
	for _, s := range r.stores {
		snap := StoreSnapshot{Store: s.Name()}
		if token, ok := r.read(ctx, s, entity.CredentialKeyToken); ok && token != "" {
			snap.HasToken = true
		}
		if raw, ok := r.read(ctx, s, entity.CredentialKeyUser); ok {
			user, err := decodeUser(raw)
			if err != nil {
				snap.UserErr = err.Error()
			} else {
				snap.User = user
			}
		}
		out = append(out, snap)
	}
	return out
}

func (r *CredentialResolver) read(ctx context.Context, s contract.CredentialStore, key string) (string, bool) {
	value, err := s.Get(ctx, key)
	if err == nil {
		return value, true
	}
	if !errors.Is(err, contract.ErrCredentialNotFound) {
		r.logger.Warn(credentialModule, "Credential store read failed", map[string]interface{}{
			"store": s.Name(),
			"key":   key,
			"error": err.Error(),
		})
	}
	return "", false
}

func decodeUser(raw string) (*entity.User, error) {
	var user *entity.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("empty user record")
	}
	return user, nil
}
