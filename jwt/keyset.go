package jwt

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-hclog"

	sdkHttp "github.com/hashicorp/cap-cognito/sdk/http"
)

// maxKeySetSize caps how much of a JWKS response is read.
const maxKeySetSize = 1 << 20

// SigningKey is an immutable public key published by a provider for
// verifying token signatures.
type SigningKey struct {
	keyId     string
	alg       Alg
	publicKey crypto.PublicKey
}

// NewSigningKey creates a SigningKey. The alg may be empty when the
// provider doesn't declare one for the key.
func NewSigningKey(keyId string, alg Alg, publicKey crypto.PublicKey) SigningKey {
	return SigningKey{keyId: keyId, alg: alg, publicKey: publicKey}
}

func (k SigningKey) KeyId() string               { return k.keyId }     // KeyId is the key's "kid"
func (k SigningKey) Alg() Alg                    { return k.alg }       // Alg is the key's declared "alg"
func (k SigningKey) PublicKey() crypto.PublicKey { return k.publicKey } // PublicKey is the key material

// KeySet is an ordered, immutable collection of SigningKeys.
type KeySet struct {
	keys []SigningKey
}

// NewKeySet creates a KeySet from the keys, in order.
func NewKeySet(keys ...SigningKey) *KeySet {
	ks := &KeySet{keys: make([]SigningKey, len(keys))}
	copy(ks.keys, keys)
	return ks
}

// ParseKeySet parses a JWKS document of the form {"keys": [...]}. Keys which
// are not asymmetric signing keys are skipped.
func ParseKeySet(data []byte) (*KeySet, error) {
	const op = "jwt.ParseKeySet"
	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(data, &jwks); err != nil {
		return nil, fmt.Errorf("%s: unable to parse key set: %w", op, err)
	}
	keys := make([]SigningKey, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Use == "enc" {
			continue
		}
		pub := k.Public()
		if pub.Key == nil {
			continue
		}
		keys = append(keys, NewSigningKey(k.KeyID, Alg(k.Algorithm), pub.Key))
	}
	return &KeySet{keys: keys}, nil
}

// Key returns the key whose id equals kid.
func (ks *KeySet) Key(kid string) (SigningKey, bool) {
	if ks == nil {
		return SigningKey{}, false
	}
	for _, k := range ks.keys {
		if k.keyId == kid {
			return k, true
		}
	}
	return SigningKey{}, false
}

// Keys returns a copy of the set's keys, in order.
func (ks *KeySet) Keys() []SigningKey {
	if ks == nil {
		return nil
	}
	keys := make([]SigningKey, len(ks.keys))
	copy(keys, ks.keys)
	return keys
}

// Len returns the number of keys in the set.
func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.keys)
}

// KeySetCache fetches a provider's JWKS and keeps it for the life of the
// cache. Once loaded, the set is never refetched. It is safe for concurrent
// use.
type KeySetCache struct {
	jwksUrl string
	client  *http.Client
	timeout time.Duration
	logger  hclog.Logger

	mu     sync.RWMutex
	keySet *KeySet

	fetches atomic.Int64
}

// NewKeySetCache creates an empty KeySetCache for the JWKS at jwksUrl.
// Supported options: WithHttpClient, WithTimeout, WithLogger
func NewKeySetCache(jwksUrl string, opt ...Option) (*KeySetCache, error) {
	const op = "jwt.NewKeySetCache"
	if jwksUrl == "" {
		return nil, fmt.Errorf("%s: jwks url is empty: %w", op, ErrInvalidParameter)
	}
	opts := getKeySetCacheOpts(opt...)
	client := opts.withHttpClient
	if client == nil {
		var err error
		if client, err = sdkHttp.NewClient("", opts.withTimeout); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	return &KeySetCache{
		jwksUrl: jwksUrl,
		client:  client,
		timeout: opts.withTimeout,
		logger:  opts.withLogger,
	}, nil
}

// EnsureLoaded returns the cached KeySet, fetching it first if no fetch has
// succeeded yet. A failed fetch leaves the cache empty, so the next call
// tries again.
func (c *KeySetCache) EnsureLoaded(ctx context.Context) (*KeySet, error) {
	const op = "jwt.(KeySetCache).EnsureLoaded"
	if ks, ok := c.Cached(); ok {
		return ks, nil
	}

	// the fetch happens outside the lock: racing first calls may each fetch,
	// but none of them waits on another's network call.
	ks, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("unable to load key set", "op", op, "url", c.jwksUrl, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keySet == nil {
		c.keySet = ks
		c.logger.Debug("key set loaded", "op", op, "url", c.jwksUrl, "keys", ks.Len())
	}
	return c.keySet, nil
}

// Cached returns the cached KeySet without fetching.
func (c *KeySetCache) Cached() (*KeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keySet, c.keySet != nil
}

// Fetches returns the number of fetches attempted, successful or not.
func (c *KeySetCache) Fetches() int {
	return int(c.fetches.Load())
}

func (c *KeySetCache) fetch(ctx context.Context) (*KeySet, error) {
	c.fetches.Add(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksUrl, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read response: %w", ErrKeySetFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrKeySetFetch, resp.StatusCode)
	}
	ks, err := ParseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetFetch, err)
	}
	return ks, nil
}

// keySetCacheOptions is the set of available options for KeySetCache
type keySetCacheOptions struct {
	withHttpClient *http.Client
	withTimeout    time.Duration
	withLogger     hclog.Logger
}

func keySetCacheDefaults() keySetCacheOptions {
	return keySetCacheOptions{
		withTimeout: sdkHttp.DefaultTimeout,
		withLogger:  hclog.NewNullLogger(),
	}
}

func getKeySetCacheOpts(opt ...Option) keySetCacheOptions {
	opts := keySetCacheDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withTimeout <= 0 {
		opts.withTimeout = sdkHttp.DefaultTimeout
	}
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	return opts
}
