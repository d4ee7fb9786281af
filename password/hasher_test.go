package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *MultiHasher {
	t.Helper()
	h, err := NewHasher(fastConfig())
	require.NoError(t, err)
	return h
}

func TestHasherRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("password1")
	require.NoError(t, err)
	require.Equal(t, Success, h.Verify(hash, "password1"))
	require.Equal(t, Failed, h.Verify(hash, "password2"))
}

func TestHasherFlagsWeakerArgon2ForRehash(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("rehash-me")
	require.NoError(t, err)

	stronger, err := NewHasher(secureConfig())
	require.NoError(t, err)
	require.Equal(t, SuccessRehashNeeded, stronger.Verify(hash, "rehash-me"))
}

func TestHasherVerifiesLegacyPBKDF2(t *testing.T) {
	legacy, err := NewPBKDF2(minPBKDF2Iterations)
	require.NoError(t, err)
	hash, err := legacy.Hash("legacy-secret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$pbkdf2-sha256$i=10000$"))

	h := newTestHasher(t)
	require.Equal(t, SuccessRehashNeeded, h.Verify(hash, "legacy-secret"))
	require.Equal(t, Failed, h.Verify(hash, "other-secret"))

	needs, err := legacy.NeedsUpgrade(hash)
	require.NoError(t, err)
	require.False(t, needs)

	stronger, err := NewPBKDF2(0)
	require.NoError(t, err)
	needs, err = stronger.NeedsUpgrade(hash)
	require.NoError(t, err)
	require.True(t, needs)
}

func TestHasherVerifiesLegacyBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("bcrypt-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	h := newTestHasher(t)
	require.Equal(t, SuccessRehashNeeded, h.Verify(string(raw), "bcrypt-secret"))
	require.Equal(t, Failed, h.Verify(string(raw), "wrong"))
}

func TestHasherMalformedHashFails(t *testing.T) {
	h := newTestHasher(t)
	for _, stored := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$???",
		"$pbkdf2-sha256$i=abc$c2FsdA$aGFzaA",
		"$2b$04$short",
		"$unknown$x$y",
	} {
		require.Equalf(t, Failed, h.Verify(stored, "anything"), "stored %q", stored)
	}
}

func TestVerificationResultString(t *testing.T) {
	require.Equal(t, "Success", Success.String())
	require.Equal(t, "SuccessRehashNeeded", SuccessRehashNeeded.String())
	require.Equal(t, "Failed", Failed.String())
}

func TestHasherRejectsExcessiveStoredCost(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("cost-check")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	for _, params := range []string{"m=4194304,t=1,p=1", "m=8192,t=1000,p=1", "m=8192,t=1,p=200"} {
		hostile := strings.Replace(hash, "m=8192,t=1,p=1", params, 1)
		require.Equalf(t, Failed, h.Verify(hostile, "cost-check"), "params %s", params)
		_, err := h.current.Verify("cost-check", hostile)
		require.ErrorIsf(t, err, ErrMalformedHash, "params %s", params)
	}

	legacy, err := NewPBKDF2(minPBKDF2Iterations)
	require.NoError(t, err)
	pbk, err := legacy.Hash("cost-check")
	require.NoError(t, err)
	hostile := strings.Replace(pbk, "$i=10000$", "$i=2000000000$", 1)
	require.Equal(t, Failed, h.Verify(hostile, "cost-check"))
	_, err = legacy.Verify("cost-check", hostile)
	require.ErrorIs(t, err, ErrMalformedHash)

	_, err = NewPBKDF2(maxPBKDF2Iterations + 1)
	require.Error(t, err)
}
