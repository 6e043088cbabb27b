package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-1", "bulletin_10_term1.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	jobID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "bulletin_10_term1.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("job-1", "bulletin_10_term1.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestSignedURLRejectsOtherSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("different", time.Hour)

	token, _, err := other.Generate("job-1", "file.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Hour)
	// Constructor clamps non-positive TTLs to a sane default.
	token, _, err := signer.Generate("job-1", "file.pdf")
	require.NoError(t, err)
	_, _, _, err = signer.Parse(token, false)
	require.NoError(t, err)

	short := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Minute}
	expired, _, err := short.Generate("job-1", "file.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(expired, false)
	require.Error(t, err)

	jobID, _, _, err := signer.Parse(expired, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestSignedURLRequiresInputs(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "file.pdf")
	require.Error(t, err)
	_, _, err = signer.Generate("job-1", "")
	require.Error(t, err)

	unsigned := NewSignedURLSigner("", time.Hour)
	_, _, err = unsigned.Generate("job-1", "file.pdf")
	require.Error(t, err)
}
