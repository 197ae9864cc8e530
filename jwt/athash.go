package jwt

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// AccessTokenHash computes the at_hash value for accessToken: the base64url
// encoding of the left-most half of the hash of the token, using the hash of
// the id_token's signing alg.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#CodeIDToken
func AccessTokenHash(alg Alg, accessToken string) (string, error) {
	const op = "jwt.AccessTokenHash"
	h, err := hashForAlg(alg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	_, _ = h.Write([]byte(accessToken))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

func verifyAccessTokenHash(alg Alg, claims map[string]interface{}, accessToken string) error {
	atHash, ok := claims["at_hash"].(string)
	if !ok || atHash == "" {
		return fmt.Errorf("at_hash claim is missing: %w", ErrTokenBinding)
	}
	want, err := AccessTokenHash(alg, accessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenBinding, err)
	}
	if subtle.ConstantTimeCompare([]byte(atHash), []byte(want)) != 1 {
		return fmt.Errorf("at_hash does not match access token: %w", ErrTokenBinding)
	}
	return nil
}
