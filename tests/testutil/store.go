package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/shopfront/internal/credential"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestVault returns a vault over an in-memory keyring, seeded with
// session when its token is non-empty.
func NewTestVault(t *testing.T, session model.Session) *credential.Vault {
	t.Helper()

	v := credential.NewVault(keyring.NewArrayKeyring(nil))
	if session.Token != "" {
		if err := v.Save(session); err != nil {
			t.Fatalf("seeding test vault: %v", err)
		}
	}
	return v
}
