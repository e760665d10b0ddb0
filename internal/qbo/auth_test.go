package qbo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptTokenResponse_DocumentedNames(t *testing.T) {
	res, err := adaptTokenResponse([]byte(`{
		"access_token": "at",
		"refresh_token": "rt",
		"expires_in": 3600,
		"x_refresh_token_expires_in": 8726400
	}`))
	assert.NoError(t, err)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, "rt", res.RefreshToken)
	assert.Equal(t, time.Hour, res.AccessExpiresIn)
	assert.Equal(t, 8726400*time.Second, res.RefreshExpiresIn)
}

func TestAdaptTokenResponse_CamelCaseVariant(t *testing.T) {
	res, err := adaptTokenResponse([]byte(`{
		"accessToken": "at",
		"refreshToken": "rt",
		"expiresIn": 3600,
		"refreshTokenExpiresIn": 8726400
	}`))
	assert.NoError(t, err)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, "rt", res.RefreshToken)
	assert.Equal(t, time.Hour, res.AccessExpiresIn)
	assert.Equal(t, 8726400*time.Second, res.RefreshExpiresIn)
}

func TestAdaptTokenResponse_StringLifetimes(t *testing.T) {
	res, err := adaptTokenResponse([]byte(`{
		"access_token": "at",
		"refresh_token": "rt",
		"expires_in": "3600",
		"x_refresh_token_expires_in": "8726400"
	}`))
	assert.NoError(t, err)
	assert.Equal(t, time.Hour, res.AccessExpiresIn)
	assert.Equal(t, 8726400*time.Second, res.RefreshExpiresIn)
}

func TestAdaptTokenResponse_MissingTokens(t *testing.T) {
	_, err := adaptTokenResponse([]byte(`{"expires_in": 3600}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing access or refresh token")
}

func TestAdaptTokenResponse_MalformedJSON(t *testing.T) {
	_, err := adaptTokenResponse([]byte(`{`))
	assert.Error(t, err)
}

func TestAdaptTokenResponse_UnknownLifetimeNameDefaultsToZero(t *testing.T) {
	res, err := adaptTokenResponse([]byte(`{
		"access_token": "at",
		"refresh_token": "rt",
		"token_ttl": 3600
	}`))
	assert.NoError(t, err)
	assert.Zero(t, res.AccessExpiresIn)
	assert.Zero(t, res.RefreshExpiresIn)
}
