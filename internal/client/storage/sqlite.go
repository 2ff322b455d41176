package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/avolkov/taskdeck/internal/models"
)

const (
	keyCredential = "credential"
	keyUser       = "user"
	keyHandshake  = "oauth_handshake"
)

// SQLiteStore keeps the credential pair in a small key/value table and the
// OAuth handshake in a separate transient table that is purged every time
// the store is opened. Purging on open models session-scoped browser storage:
// a handshake survives the provider redirect while the process runs, but not
// a fresh start.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and purges transient
// state. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transient (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
		`DELETE FROM transient`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCredentials(ctx context.Context, token models.Token, user models.User) error {
	tokenData, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	userData, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	// Token and user are written in one transaction so the store never holds
	// one half of the pair.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := setKV(ctx, tx, "metadata", keyCredential, tokenData); err != nil {
		return err
	}
	if err := setKV(ctx, tx, "metadata", keyUser, userData); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Credentials(ctx context.Context) (*models.Token, error) {
	data, err := getKV(ctx, s.db, "metadata", keyCredential)
	if err != nil || data == nil {
		return nil, err
	}
	var token models.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &token, nil
}

func (s *SQLiteStore) User(ctx context.Context) (*models.User, error) {
	data, err := getKV(ctx, s.db, "metadata", keyUser)
	if err != nil || data == nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, user models.User) error {
	cred, err := getKV(ctx, s.db, "metadata", keyCredential)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrCredentialPairIncomplete
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return setKV(ctx, s.db, "metadata", keyUser, data)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transient`); err != nil {
		return fmt.Errorf("clear transient: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveHandshake(ctx context.Context, hs Handshake) error {
	data, err := json.Marshal(hs)
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}
	return setKV(ctx, s.db, "transient", keyHandshake, data)
}

func (s *SQLiteStore) TakeHandshake(ctx context.Context) (*Handshake, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	data, err := getKV(ctx, tx, "transient", keyHandshake)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transient WHERE key = ?`, keyHandshake); err != nil {
		return nil, fmt.Errorf("consume handshake: %w", err)
	}

	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, fmt.Errorf("decode handshake: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &hs, nil
}

func (s *SQLiteStore) ClearHandshake(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transient WHERE key = ?`, keyHandshake)
	if err != nil {
		return fmt.Errorf("clear handshake: %w", err)
	}
	return nil
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setKV(ctx context.Context, db execer, table, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO `+table+` (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", table, key, err)
	}
	return nil
}

func getKV(ctx context.Context, db execer, table, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", table, key, err)
	}
	return value, nil
}
