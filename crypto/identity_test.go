package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdentity(t *testing.T) {
	identity, err := GenerateIdentity(16602)
	require.NoError(t, err)

	assert.Equal(t, uint64(16602), identity.ChainID)
	assert.Len(t, identity.ID, 40)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), identity.ID)
	assert.True(t, len(identity.Address) == 42)
	assert.NotEqual(t, [KeySize]byte{}, identity.EdPriv)
	assert.NotEqual(t, [KeySize]byte{}, identity.XPriv)
	assert.NotEqual(t, [KeySize]byte{}, identity.EdPub)
	assert.NotEqual(t, [KeySize]byte{}, identity.XPub)
}

// TestIdentityDeterminism checks that restoring from the same private
// keys always reproduces the identical identity.
func TestIdentityDeterminism(t *testing.T) {
	original, err := GenerateIdentity(16661)
	require.NoError(t, err)

	restored, err := RestoreIdentity(original.EdPriv, original.XPriv, 16661)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	again, err := RestoreIdentity(original.EdPriv, original.XPriv, 16661)
	require.NoError(t, err)
	assert.Equal(t, restored, again)
}

// TestAddressCoupling checks address == "0x" + id and that both derive
// from the signing public key alone.
func TestAddressCoupling(t *testing.T) {
	identity, err := GenerateIdentity(16600)
	require.NoError(t, err)

	assert.Equal(t, "0x"+identity.ID, identity.Address)

	sum := sha256.Sum256(identity.EdPub[:])
	assert.Equal(t, hex.EncodeToString(sum[:20]), identity.ID)
}

func TestDeriveAgentIDKnownVector(t *testing.T) {
	var pub [KeySize]byte // all zeros
	sum := sha256.Sum256(pub[:])
	assert.Equal(t, hex.EncodeToString(sum[:20]), DeriveAgentID(pub))
}

func TestExportKeysRoundTrip(t *testing.T) {
	identity, err := GenerateIdentity(16602)
	require.NoError(t, err)

	edHex, xHex := identity.ExportKeys()

	edPriv, err := ParseKeyHex(edHex)
	require.NoError(t, err)
	xPriv, err := ParseKeyHex(xHex)
	require.NoError(t, err)

	restored, err := RestoreIdentity(edPriv, xPriv, identity.ChainID)
	require.NoError(t, err)
	assert.Equal(t, identity, restored)
}

func TestParseKeyHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", false},
		{"too short", "0011", true},
		{"too long", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff00", true},
		{"not hex", "zz112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyHex(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
