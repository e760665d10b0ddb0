package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/billrelay/backend/internal/crypto"
	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/models"
)

// Schema for the connection table. One row per realm; reconnecting a company
// overwrites its row, nothing here ever deletes one.
const Schema = `
CREATE TABLE IF NOT EXISTS qbo_connections (
    realm_id TEXT PRIMARY KEY,
    access_token TEXT,
    access_token_expires_at TIMESTAMPTZ,
    refresh_token TEXT NOT NULL,
    refresh_token_expires_at TIMESTAMPTZ,
    environment TEXT,
    scopes TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ConnectionStore persists QuickBooks connections with tokens encrypted at
// rest. Every read decrypts; every write encrypts. Expiry timestamps are
// normalized to UTC on the way out.
type ConnectionStore struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewConnectionStore(db *sql.DB, cipher *crypto.TokenCipher) *ConnectionStore {
	return &ConnectionStore{db: db, cipher: cipher}
}

// Get loads and decrypts the connection for a realm. Returns a NotConnected
// domain error when no row exists.
func (s *ConnectionStore) Get(ctx context.Context, realmID string) (*models.Connection, error) {
	var (
		conn       models.Connection
		accessEnc  sql.NullString
		refreshEnc string
		accessExp  sql.NullTime
		refreshExp sql.NullTime
		env        sql.NullString
		scopes     sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT realm_id, access_token, access_token_expires_at,
		       refresh_token, refresh_token_expires_at,
		       environment, scopes, updated_at
		FROM qbo_connections
		WHERE realm_id = $1`, realmID).
		Scan(&conn.RealmID, &accessEnc, &accessExp, &refreshEnc, &refreshExp, &env, &scopes, &conn.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotConnected(realmID)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading connection %s: %w", realmID, err)
	}

	if accessEnc.Valid && accessEnc.String != "" {
		conn.AccessToken, err = s.cipher.Decrypt(accessEnc.String)
		if err != nil {
			return nil, fmt.Errorf("error decrypting access token for %s: %w", realmID, err)
		}
	}
	if refreshEnc != "" {
		conn.RefreshToken, err = s.cipher.Decrypt(refreshEnc)
		if err != nil {
			return nil, fmt.Errorf("error decrypting refresh token for %s: %w", realmID, err)
		}
	}

	conn.AccessTokenExpiresAt = normalizeUTC(accessExp)
	conn.RefreshTokenExpiresAt = normalizeUTC(refreshExp)
	conn.Environment = env.String
	conn.Scopes = scopes.String

	return &conn, nil
}

// Upsert writes a connection, encrypting both tokens. The refresh token
// rotates on Intuit's side on every use, so the stored value must always be
// the one from the latest exchange.
func (s *ConnectionStore) Upsert(ctx context.Context, conn *models.Connection) error {
	accessEnc := ""
	if conn.AccessToken != "" {
		var err error
		accessEnc, err = s.cipher.Encrypt(conn.AccessToken)
		if err != nil {
			return fmt.Errorf("error encrypting access token: %w", err)
		}
	}

	refreshEnc, err := s.cipher.Encrypt(conn.RefreshToken)
	if err != nil {
		return fmt.Errorf("error encrypting refresh token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO qbo_connections
			(realm_id, access_token, access_token_expires_at,
			 refresh_token, refresh_token_expires_at, environment, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (realm_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			refresh_token = EXCLUDED.refresh_token,
			refresh_token_expires_at = EXCLUDED.refresh_token_expires_at,
			environment = EXCLUDED.environment,
			scopes = EXCLUDED.scopes,
			updated_at = NOW()`,
		conn.RealmID, nullIfEmpty(accessEnc), conn.AccessTokenExpiresAt,
		refreshEnc, conn.RefreshTokenExpiresAt, nullIfEmpty(conn.Environment), nullIfEmpty(conn.Scopes))
	if err != nil {
		return fmt.Errorf("error upserting connection %s: %w", conn.RealmID, err)
	}

	return nil
}

// First returns the sole (or oldest) connection, used when a sync job does not
// name a realm. NotConnected when the table is empty.
func (s *ConnectionStore) First(ctx context.Context) (*models.Connection, error) {
	var realmID string
	err := s.db.QueryRowContext(ctx,
		`SELECT realm_id FROM qbo_connections ORDER BY updated_at ASC LIMIT 1`).Scan(&realmID)
	if err == sql.ErrNoRows {
		return nil, errs.NotConnected("any")
	}
	if err != nil {
		return nil, fmt.Errorf("error finding default connection: %w", err)
	}
	return s.Get(ctx, realmID)
}

// normalizeUTC interprets naive timestamps as UTC and converts the rest.
func normalizeUTC(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
