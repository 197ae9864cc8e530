package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/jonboulle/clockwork"
)

// Expected defines the expected claims to be validated by Verify. Empty
// fields are not checked.
type Expected struct {
	// Issuer must equal the "iss" claim.
	Issuer string

	// Audience must be one of the "aud" claim values.
	Audience string

	// AccessToken, when set, is the access_token the "at_hash" claim must
	// be bound to.
	AccessToken string
}

// Verifier verifies signed JWTs with keys from a KeySet and validates their
// claims. A Verifier holds no key material and is safe for concurrent use.
type Verifier struct {
	clock         clockwork.Clock
	leeway        time.Duration
	supportedAlgs map[Alg]bool
}

// NewVerifier creates a Verifier.
// Supported options: WithClock, WithLeeway, WithSupportedAlgs
func NewVerifier(opt ...Option) (*Verifier, error) {
	const op = "jwt.NewVerifier"
	opts := getVerifierOpts(opt...)
	if len(opts.withSupportedAlgs) == 0 {
		return nil, fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter)
	}
	if err := SupportedSigningAlgorithm(opts.withSupportedAlgs...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.withLeeway < 0 {
		return nil, fmt.Errorf("%s: leeway must not be negative: %w", op, ErrInvalidParameter)
	}
	algs := make(map[Alg]bool, len(opts.withSupportedAlgs))
	for _, a := range opts.withSupportedAlgs {
		algs[a] = true
	}
	return &Verifier{
		clock:         opts.withClock,
		leeway:        opts.withLeeway,
		supportedAlgs: algs,
	}, nil
}

// Verify parses token, verifies its signature with the key from ks named by
// the token's "kid" header and validates its claims against expected. On
// success it returns every claim in the token's payload, unmodified.
//
// All errors match ErrTokenVerification, and one of: ErrMalformedToken,
// ErrKeyNotFound, ErrUnsupportedAlg, ErrInvalidSignature, ErrInvalidClaims or
// ErrTokenBinding.
func (v *Verifier) Verify(token string, ks *KeySet, expected Expected) (map[string]interface{}, error) {
	claims, err := v.verify(token, ks, expected)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenVerification, err)
	}
	return claims, nil
}

func (v *Verifier) verify(token string, ks *KeySet, expected Expected) (map[string]interface{}, error) {
	const op = "jwt.(Verifier).Verify"
	if token == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	if ks == nil {
		return nil, fmt.Errorf("%s: key set is nil: %w", op, ErrInvalidParameter)
	}

	// The header is read before any key is chosen, so nothing here is
	// trusted until Verify below succeeds.
	jws, err := jose.ParseSignedCompact(token, joseAlgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%s: token must have exactly one signature: %w", op, ErrMalformedToken)
	}
	header := jws.Signatures[0].Header
	alg := Alg(header.Algorithm)

	key, ok := ks.Key(header.KeyID)
	if !ok {
		return nil, fmt.Errorf("%s: no key for kid %q: %w", op, header.KeyID, ErrKeyNotFound)
	}
	if !v.supportedAlgs[alg] {
		return nil, fmt.Errorf("%s: %q: %w", op, alg, ErrUnsupportedAlg)
	}
	if key.Alg() != "" && key.Alg() != alg {
		return nil, fmt.Errorf("%s: token alg %q does not match key alg %q: %w", op, alg, key.Alg(), ErrInvalidSignature)
	}

	payload, err := jws.Verify(key.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	var std jwt.Claims
	if err := json.Unmarshal(payload, &std); err != nil {
		return nil, fmt.Errorf("%s: unable to parse registered claims: %w: %w", op, ErrMalformedToken, err)
	}
	allClaims := map[string]interface{}{}
	if err := json.Unmarshal(payload, &allClaims); err != nil {
		return nil, fmt.Errorf("%s: unable to parse claims: %w: %w", op, ErrMalformedToken, err)
	}

	if err := v.validate(std, expected); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidClaims, err)
	}

	if expected.AccessToken != "" {
		if err := verifyAccessTokenHash(alg, allClaims, expected.AccessToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return allClaims, nil
}

func (v *Verifier) validate(std jwt.Claims, expected Expected) error {
	if std.Expiry == nil {
		return errors.New("exp claim is missing")
	}
	exp := jwt.Expected{
		Issuer: expected.Issuer,
		Time:   v.clock.Now(),
	}
	if expected.Audience != "" {
		exp.AnyAudience = jwt.Audience{expected.Audience}
	}
	err := std.ValidateWithLeeway(exp, v.leeway)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrInvalidIssuer):
		return fmt.Errorf("%q: %w", std.Issuer, ErrInvalidIssuer)
	case errors.Is(err, jwt.ErrInvalidAudience):
		return fmt.Errorf("%q: %w", []string(std.Audience), ErrInvalidAudience)
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("expired at %s: %w", std.Expiry.Time().UTC().Format(time.RFC3339), ErrExpired)
	default:
		return err
	}
}

// verifierOptions is the set of available options for Verifier
type verifierOptions struct {
	withClock         clockwork.Clock
	withLeeway        time.Duration
	withSupportedAlgs []Alg
}

func verifierDefaults() verifierOptions {
	return verifierOptions{
		withClock:         clockwork.NewRealClock(),
		withSupportedAlgs: []Alg{RS256},
	}
}

func getVerifierOpts(opt ...Option) verifierOptions {
	opts := verifierDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withClock == nil {
		opts.withClock = clockwork.NewRealClock()
	}
	return opts
}
