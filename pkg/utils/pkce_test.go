package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)

	// RFC 7636: 43-128 字符
	assert.GreaterOrEqual(t, len(verifier), 43)
	assert.LessOrEqual(t, len(verifier), 128)

	for _, c := range verifier {
		valid := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
		assert.Truef(t, valid, "invalid character in verifier: %c", c)
	}
}

func TestGenerateState_Independent(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := GenerateState()
		require.NoError(t, err)
		assert.False(t, seen[s], "duplicate state")
		seen[s] = true
	}
}

func TestGenerateCodeChallenge(t *testing.T) {
	// RFC 7636 附录 B 示例
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", GenerateCodeChallenge(verifier))

	sum := sha256.Sum256([]byte("abc"))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), GenerateCodeChallenge("abc"))
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "abc123", "abc123", true},
		{"different", "abc123", "xyz789", false},
		{"empty left", "", "abc123", false},
		{"empty right", "abc123", "", false},
		{"both empty", "", "", false},
		{"prefix", "abc", "abc123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureCompare(tt.a, tt.b))
		})
	}
}
