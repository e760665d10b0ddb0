package store

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/billrelay/backend/internal/crypto"
	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/models"
)

func newTestStore(t *testing.T) (*ConnectionStore, sqlmock.Sqlmock, *crypto.TokenCipher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewTokenCipher("store-test-secret", "store-test-salt")
	assert.NoError(t, err)

	return NewConnectionStore(db, cipher), mock, cipher
}

func TestConnectionStore_Get(t *testing.T) {
	s, mock, cipher := newTestStore(t)
	ctx := context.Background()

	t.Run("decrypts tokens and normalizes expiry to UTC", func(t *testing.T) {
		accessEnc, _ := cipher.Encrypt("access-plain")
		refreshEnc, _ := cipher.Encrypt("refresh-plain")
		loc := time.FixedZone("EST", -5*3600)
		exp := time.Date(2025, 3, 15, 10, 0, 0, 0, loc)

		mock.ExpectQuery("SELECT realm_id, access_token, access_token_expires_at").
			WithArgs("realm1").
			WillReturnRows(sqlmock.NewRows([]string{
				"realm_id", "access_token", "access_token_expires_at",
				"refresh_token", "refresh_token_expires_at", "environment", "scopes", "updated_at",
			}).AddRow("realm1", accessEnc, exp, refreshEnc, nil, "sandbox", "accounting", time.Now()))

		conn, err := s.Get(ctx, "realm1")
		assert.NoError(t, err)
		assert.Equal(t, "access-plain", conn.AccessToken)
		assert.Equal(t, "refresh-plain", conn.RefreshToken)
		assert.Equal(t, time.UTC, conn.AccessTokenExpiresAt.Location())
		assert.True(t, conn.AccessTokenExpiresAt.Equal(exp))
		assert.Nil(t, conn.RefreshTokenExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is NotConnected", func(t *testing.T) {
		mock.ExpectQuery("SELECT realm_id, access_token, access_token_expires_at").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{
				"realm_id", "access_token", "access_token_expires_at",
				"refresh_token", "refresh_token_expires_at", "environment", "scopes", "updated_at",
			}))

		_, err := s.Get(ctx, "ghost")
		assert.Error(t, err)
		assert.Equal(t, errs.KindNotConnected, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupted ciphertext fails loudly", func(t *testing.T) {
		mock.ExpectQuery("SELECT realm_id, access_token, access_token_expires_at").
			WithArgs("realm1").
			WillReturnRows(sqlmock.NewRows([]string{
				"realm_id", "access_token", "access_token_expires_at",
				"refresh_token", "refresh_token_expires_at", "environment", "scopes", "updated_at",
			}).AddRow("realm1", nil, nil, "bm90LWEtcmVhbC1jaXBoZXJ0ZXh0", nil, nil, nil, time.Now()))

		_, err := s.Get(ctx, "realm1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "decrypting refresh token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConnectionStore_Upsert(t *testing.T) {
	s, mock, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("stores ciphertext, never plaintext", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).UTC()
		conn := &models.Connection{
			RealmID:              "realm1",
			AccessToken:          "access-plain",
			AccessTokenExpiresAt: &exp,
			RefreshToken:         "refresh-plain",
			Environment:          models.EnvSandbox,
			Scopes:               "accounting",
		}

		var storedAccess, storedRefresh string
		mock.ExpectExec("INSERT INTO qbo_connections").
			WithArgs("realm1", captureArg{&storedAccess}, sqlmock.AnyArg(), captureArg{&storedRefresh}, nil, "sandbox", "accounting").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.Upsert(ctx, conn)
		assert.NoError(t, err)
		assert.NotEqual(t, "access-plain", storedAccess)
		assert.NotEqual(t, "refresh-plain", storedRefresh)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConnectionStore_First(t *testing.T) {
	s, mock, cipher := newTestStore(t)
	ctx := context.Background()

	t.Run("empty table is NotConnected", func(t *testing.T) {
		mock.ExpectQuery("SELECT realm_id FROM qbo_connections ORDER BY updated_at").
			WillReturnRows(sqlmock.NewRows([]string{"realm_id"}))

		_, err := s.First(ctx)
		assert.Equal(t, errs.KindNotConnected, errs.KindOf(err))
	})

	t.Run("returns oldest connection", func(t *testing.T) {
		refreshEnc, _ := cipher.Encrypt("refresh-plain")

		mock.ExpectQuery("SELECT realm_id FROM qbo_connections ORDER BY updated_at").
			WillReturnRows(sqlmock.NewRows([]string{"realm_id"}).AddRow("realm1"))
		mock.ExpectQuery("SELECT realm_id, access_token, access_token_expires_at").
			WithArgs("realm1").
			WillReturnRows(sqlmock.NewRows([]string{
				"realm_id", "access_token", "access_token_expires_at",
				"refresh_token", "refresh_token_expires_at", "environment", "scopes", "updated_at",
			}).AddRow("realm1", nil, nil, refreshEnc, nil, "sandbox", nil, time.Now()))

		conn, err := s.First(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "realm1", conn.RealmID)
		assert.Equal(t, "refresh-plain", conn.RefreshToken)
	})
}

// captureArg matches any string argument and records it for later assertions.
type captureArg struct{ dst *string }

func (c captureArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	*c.dst = s
	return true
}
