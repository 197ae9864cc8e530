package jwt

import (
	"crypto"
	"encoding/json"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

// TestSignJWT will bundle the provided claims into a test signed JWT. The
// keyID becomes the token's "kid" header when it isn't empty.
func TestSignJWT(t *testing.T, key crypto.PrivateKey, alg Alg, claims interface{}, keyID string) string {
	t.Helper()
	require := require.New(t)

	sig, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: jose.SignatureAlgorithm(alg),
			Key:       jose.JSONWebKey{Key: key, KeyID: keyID},
		},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	raw, err := jwt.Signed(sig).Claims(claims).Serialize()
	require.NoError(err)
	return raw
}

// TestKeySetJSON returns the JWKS document a provider would publish for the
// keys.
func TestKeySetJSON(t *testing.T, keys ...SigningKey) []byte {
	t.Helper()
	jwks := jose.JSONWebKeySet{}
	for _, k := range keys {
		jwks.Keys = append(jwks.Keys, jose.JSONWebKey{
			Key:       k.PublicKey(),
			KeyID:     k.KeyId(),
			Algorithm: string(k.Alg()),
			Use:       "sig",
		})
	}
	b, err := json.Marshal(jwks)
	require.NoError(t, err)
	return b
}
