package models

import "time"

// Environment selects which Intuit stack a connection talks to.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Connection is one QuickBooks company (realm) connection. Token fields hold
// plaintext in memory only; the store encrypts them at rest. Expiry instants
// are always UTC.
type Connection struct {
	RealmID               string     `json:"realm_id" db:"realm_id"`
	AccessToken           string     `json:"-" db:"access_token"`
	AccessTokenExpiresAt  *time.Time `json:"access_token_expires_at" db:"access_token_expires_at"`
	RefreshToken          string     `json:"-" db:"refresh_token"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at" db:"refresh_token_expires_at"`
	Environment           string     `json:"environment" db:"environment"`
	Scopes                string     `json:"scopes" db:"scopes"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}
