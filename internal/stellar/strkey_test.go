// internal/stellar/strkey_test.go
package stellar

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIDRoundTrip(t *testing.T) {
	seeds := [][]byte{
		make([]byte, ed25519.SeedSize),
		[]byte(strings.Repeat("\xff", ed25519.SeedSize)),
		[]byte("an exactly thirty-two byte seed!"),
	}

	for _, seed := range seeds {
		key := ed25519.NewKeyFromSeed(seed)
		pub := key.Public().(ed25519.PublicKey)

		address := EncodeAccountID(pub)
		assert.Len(t, address, 56)
		assert.True(t, strings.HasPrefix(address, "G"), "address %s must start with G", address)

		decoded, err := DecodeAccountID(address)
		require.NoError(t, err)
		assert.Equal(t, pub, decoded)
	}
}

func TestDecodeAccountIDRejectsCorruption(t *testing.T) {
	key := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	address := EncodeAccountID(key.Public().(ed25519.PublicKey))

	tests := []struct {
		name    string
		address string
	}{
		{"empty", ""},
		{"too short", address[:55]},
		{"too long", address + "A"},
		{"not base32", strings.Repeat("@", 56)},
		{"flipped checksum character", flipLastChar(address)},
		{"flipped payload character", flipChar(address, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAccountID(tt.address)
			assert.Error(t, err)
			assert.False(t, IsValidAccountID(tt.address))
		})
	}
}

func TestIsValidAccountID(t *testing.T) {
	key := ed25519.NewKeyFromSeed([]byte(strings.Repeat("7", ed25519.SeedSize)))
	assert.True(t, IsValidAccountID(EncodeAccountID(key.Public().(ed25519.PublicKey))))
	assert.False(t, IsValidAccountID("GNOTREAL"))
}

func flipChar(s string, i int) string {
	replacement := byte('A')
	if s[i] == 'A' {
		replacement = 'B'
	}
	return s[:i] + string(replacement) + s[i+1:]
}

func flipLastChar(s string) string {
	return flipChar(s, len(s)-1)
}
