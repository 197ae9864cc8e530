/*
Package jwt verifies signed JSON Web Tokens issued by an identity provider
against the signing keys it publishes as a JSON Web Key Set (JWKS).

A KeySetCache fetches the provider's JWKS once and keeps it for the life of
the cache. A Verifier selects the key named by a token's "kid" header,
verifies the signature, validates the issuer, audience and expiry claims and,
when asked to, the "at_hash" claim that binds an id_token to its access_token.

	cache, err := jwt.NewKeySetCache("https://cognito-idp.us-east-1.amazonaws.com/us-east-1_pool/.well-known/jwks.json")
	if err != nil {
		// handle error
	}
	ks, err := cache.EnsureLoaded(ctx)
	if err != nil {
		// handle error
	}
	v, err := jwt.NewVerifier()
	if err != nil {
		// handle error
	}
	claims, err := v.Verify(idToken, ks, jwt.Expected{
		Issuer:      "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_pool",
		Audience:    "your_client_id",
		AccessToken: accessToken,
	})
*/
package jwt
