package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/99designs/keyring"

	"github.com/nhle/shopfront/internal/model"
)

const (
	serviceName = "shopfront"

	// Storage keys for the persisted session.
	tokenKey = "session-token"
	userKey  = "session-user"
)

// Open returns the system keyring configured for shopfront.
func Open(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("shopfront-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault persists the session token and user in a keyring. It is the one
// piece of state shared by the transport client and both notification
// transports; only the session flow writes it.
type Vault struct {
	ring keyring.Keyring

	mu     gosync.RWMutex
	cached *model.Session
}

// NewVault wraps ring. Tests pass keyring.NewArrayKeyring(nil).
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Load returns the persisted session. A missing session is returned as the
// zero value, which is unauthenticated.
func (v *Vault) Load() (model.Session, error) {
	v.mu.RLock()
	if v.cached != nil {
		s := *v.cached
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	var s model.Session

	token, err := v.get(tokenKey)
	if err != nil {
		return model.Session{}, err
	}
	s.Token = token

	raw, err := v.get(userKey)
	if err != nil {
		return model.Session{}, err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.User); err != nil {
			return model.Session{}, fmt.Errorf("decoding persisted user: %w", err)
		}
	}

	v.cached = &s
	return s, nil
}

// Save persists the session, replacing any previous one.
func (v *Vault) Save(s model.Session) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	if err := v.ring.Set(keyring.Item{Key: userKey, Data: user}); err != nil {
		return fmt.Errorf("setting credential %q: %w", userKey, err)
	}
	if err := v.ring.Set(keyring.Item{Key: tokenKey, Data: []byte(s.Token)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	v.cached = &s
	return nil
}

// Clear removes the persisted session. Clearing an empty vault is not an
// error.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.cached = &model.Session{}

	var errs []error
	for _, key := range []string{tokenKey, userKey} {
		if err := v.ring.Remove(key); err != nil && !isMissing(err) {
			errs = append(errs, fmt.Errorf("deleting credential %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Token returns the bearer token, or "" when signed out.
func (v *Vault) Token() string {
	s, err := v.Load()
	if err != nil {
		return ""
	}
	return s.Token
}

// get reads a key, mapping a missing item to "".
func (v *Vault) get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if err != nil {
		if isMissing(err) {
			return "", nil
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func isMissing(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound)
}
