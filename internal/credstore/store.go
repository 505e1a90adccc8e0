package credstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/triage-ai/netwarden/internal/classify"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrBadMasterKey   = errors.New("master key must be exactly 32 bytes")
	ErrSealedTooShort = errors.New("sealed secret shorter than a nonce")
)

const nonceSize = 24

// Store reads persisted credential slots from PostgreSQL. Secrets are
// sealed at rest with NaCl secretbox under a 32-byte master key; the store
// opens them on load because the classification client needs the raw
// secret back to authenticate.
type Store struct {
	db     *sql.DB
	key    [32]byte
	logger *zap.Logger
}

// New creates a store over an existing connection pool.
func New(db *sql.DB, masterKey []byte, logger *zap.Logger) (*Store, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("credstore.New: %w", ErrBadMasterKey)
	}
	s := &Store{db: db, logger: logger}
	copy(s.key[:], masterKey)
	return s, nil
}

// Secrets returns the decrypted slots. Rows that fail to open are skipped
// with a warning — one corrupt row must not empty the pool.
func (s *Store) Secrets(ctx context.Context) ([]classify.StoredSecret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot_index, sealed_secret
		 FROM credential_slots
		 ORDER BY slot_index ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("Store.Secrets: %w", err)
	}
	defer rows.Close()

	var out []classify.StoredSecret
	for rows.Next() {
		var index int
		var sealed []byte
		if err := rows.Scan(&index, &sealed); err != nil {
			return nil, fmt.Errorf("Store.Secrets: %w", err)
		}
		secret, err := s.open(sealed)
		if err != nil {
			s.logger.Warn("credential slot unreadable, skipping",
				zap.Int("slot_index", index),
				zap.Error(err),
			)
			continue
		}
		out = append(out, classify.StoredSecret{Index: index, Secret: secret})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Store.Secrets: %w", err)
	}
	return out, nil
}

// Put seals and upserts a slot.
func (s *Store) Put(ctx context.Context, index int, secret string) error {
	sealed, err := s.seal(secret)
	if err != nil {
		return fmt.Errorf("Store.Put: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credential_slots (slot_index, sealed_secret)
		 VALUES ($1, $2)
		 ON CONFLICT (slot_index) DO UPDATE SET sealed_secret = EXCLUDED.sealed_secret`,
		index, sealed,
	)
	if err != nil {
		return fmt.Errorf("Store.Put: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (s *Store) Delete(ctx context.Context, index int) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credential_slots WHERE slot_index = $1`, index,
	); err != nil {
		return fmt.Errorf("Store.Delete: %w", err)
	}
	return nil
}

// seal encrypts a secret as nonce || box.
func (s *Store) seal(secret string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], []byte(secret), &nonce, &s.key), nil
}

// open reverses seal.
func (s *Store) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize {
		return "", ErrSealedTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("secretbox open failed")
	}
	return string(plain), nil
}
