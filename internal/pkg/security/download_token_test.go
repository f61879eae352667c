package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadTokenRoundtrip(t *testing.T) {
	token, err := GenerateDownloadToken("artworks/abc/final.png", time.Hour, "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resourceID, err := VerifyDownloadToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "artworks/abc/final.png", resourceID)
}

func TestDownloadTokenRequiresSecret(t *testing.T) {
	_, err := GenerateDownloadToken("artworks/abc/final.png", time.Hour, "")
	assert.Error(t, err)

	_, err = VerifyDownloadToken("whatever", "")
	assert.Error(t, err)
}

func TestDownloadTokenRequiresResource(t *testing.T) {
	_, err := GenerateDownloadToken("", time.Hour, "test-secret")
	assert.Error(t, err)
}

func TestDownloadTokenWrongSecret(t *testing.T) {
	token, err := GenerateDownloadToken("artworks/abc/final.png", time.Hour, "secret-a")
	require.NoError(t, err)

	_, err = VerifyDownloadToken(token, "secret-b")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDownloadTokenTampered(t *testing.T) {
	token, err := GenerateDownloadToken("artworks/abc/final.png", time.Hour, "test-secret")
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	require.Len(t, parts, 2)

	// Payload swapped for a different resource, signature kept.
	other, err := GenerateDownloadToken("artworks/xyz/final.png", time.Hour, "test-secret")
	require.NoError(t, err)
	otherParts := strings.SplitN(other, ".", 2)

	forged := otherParts[0] + "." + parts[1]
	_, err = VerifyDownloadToken(forged, "test-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDownloadTokenExpired(t *testing.T) {
	token, err := GenerateDownloadToken("artworks/abc/final.png", -time.Minute, "test-secret")
	require.NoError(t, err)

	_, err = VerifyDownloadToken(token, "test-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDownloadTokenGarbage(t *testing.T) {
	for _, tok := range []string{"", "noseparator", "a.b", "!!!.???", "a.b.c"} {
		_, err := VerifyDownloadToken(tok, "test-secret")
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestDownloadTokenFailuresAreIndistinguishable(t *testing.T) {
	expired, err := GenerateDownloadToken("artworks/abc/final.png", -time.Minute, "test-secret")
	require.NoError(t, err)
	_, errExpired := VerifyDownloadToken(expired, "test-secret")
	_, errForged := VerifyDownloadToken("garbage.garbage", "test-secret")

	assert.Equal(t, errExpired, errForged)
}
