// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cognito

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-cognito/jwt"
)

// testStore is a SessionStore holding a single session, recording how it's
// called.
type testStore struct {
	mu       sync.Mutex
	session  *Session
	sets     int
	clears   int
	getErr   error
	setErr   error
	clearErr error
}

func (s *testStore) Get(_ *http.Request) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.session.Clone(), nil
}

func (s *testStore) Set(_ http.ResponseWriter, _ *http.Request, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.session = sess.Clone()
	return nil
}

func (s *testStore) Clear(_ http.ResponseWriter, _ *http.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.session = nil
	return nil
}

func testNewProvider(t *testing.T, tp *TestProvider, settings map[string]string, opt ...Option) (*Provider, *testStore) {
	t.Helper()
	values := tp.ConfigValues()
	for k, v := range settings {
		values[k] = v
	}
	c, err := NewConfig(values)
	require.NoError(t, err)
	store := &testStore{}
	p, err := NewProvider(c, store, opt...)
	require.NoError(t, err)
	return p, store
}

func testCallbackRequest(params url.Values) *http.Request {
	return httptest.NewRequest(http.MethodGet, TestRedirectUrl+"?"+params.Encode(), nil)
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	validConfig := func() *Config {
		c, err := NewConfig(tp.ConfigValues())
		require.NoError(t, err)
		return c
	}
	cache, err := jwt.NewKeySetCache(tp.Addr() + "/.well-known/jwks.json")
	require.NoError(t, err)

	tests := []struct {
		name      string
		config    *Config
		store     SessionStore
		opts      []Option
		wantIsErr error
	}{
		{name: "valid", config: validConfig(), store: &testStore{}},
		{
			name:   "with-options",
			config: validConfig(),
			store:  &testStore{},
			opts:   []Option{WithLogger(hclog.NewNullLogger()), WithHttpClient(&http.Client{}), WithKeySetCache(cache), WithClock(clockwork.NewFakeClock())},
		},
		{name: "nil-config", store: &testStore{}, wantIsErr: ErrNilParameter},
		{name: "nil-store", config: validConfig(), wantIsErr: ErrNilParameter},
		{name: "invalid-config", config: &Config{}, store: &testStore{}, wantIsErr: ErrConfiguration},
		{
			name: "invalid-ca",
			config: func() *Config {
				c := validConfig()
				c.ProviderCA = "not a pem"
				return c
			}(),
			store:     &testStore{},
			wantIsErr: ErrInvalidCACert,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewProvider(tt.config, tt.store, tt.opts...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Nil(got)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.config, got.Config())
			assert.NotNil(got.KeySetCache())
			assert.NotNil(got.Logger())
		})
	}
	t.Run("with-key-set-cache", func(t *testing.T) {
		p, err := NewProvider(validConfig(), &testStore{}, WithKeySetCache(cache))
		require.NoError(t, err)
		assert.Same(t, cache, p.KeySetCache())
	})
}

func TestProvider_Login(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{
			name:  "with-state",
			state: "S1",
			want:  fmt.Sprintf("%s/authorize?client_id=%s&response_type=code&state=S1&redirect_uri=%s", tp.Addr(), TestClientId, TestRedirectUrl),
		},
		{
			name: "without-state",
			want: fmt.Sprintf("%s/authorize?client_id=%s&response_type=code&redirect_uri=%s", tp.Addr(), TestClientId, TestRedirectUrl),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			p, store := testNewProvider(t, tp, map[string]string{EnvState: tt.state})
			assert.Equal(tt.want, p.LoginUrl())

			w := httptest.NewRecorder()
			p.Login(w, httptest.NewRequest(http.MethodGet, "/login", nil))
			assert.Equal(http.StatusFound, w.Code)
			assert.Equal(tt.want, w.Header().Get("Location"))
			assert.Equal(0, store.sets)
			assert.Equal(0, tp.TokenRequests())
		})
	}
}

func TestProvider_Logout(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	wantUrl := fmt.Sprintf("%s/logout?response_type=code&client_id=%s&logout_uri=%s", tp.Addr(), TestClientId, TestSignoutUrl)

	t.Run("clears-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, store := testNewProvider(t, tp, nil)
		store.session = &Session{
			Username:     "alice",
			Id:           "a8d1f0e2",
			Groups:       []string{"admins"},
			Email:        "alice@example.com",
			Expires:      time.Now().Add(time.Hour),
			RefreshToken: "refresh",
		}
		assert.Equal(wantUrl, p.LogoutUrl())

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/logout", nil)
		require.NoError(p.Logout(w, r))
		assert.Equal(http.StatusFound, w.Code)
		assert.Equal(wantUrl, w.Header().Get("Location"))
		assert.Equal(1, store.clears)

		s, err := p.Session(r)
		require.NoError(err)
		assert.Nil(s)
	})
	t.Run("no-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, store := testNewProvider(t, tp, nil)
		w := httptest.NewRecorder()
		require.NoError(p.Logout(w, httptest.NewRequest(http.MethodGet, "/logout", nil)))
		assert.Equal(http.StatusFound, w.Code)
		assert.Equal(1, store.clears)
	})
	t.Run("clear-fails", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, store := testNewProvider(t, tp, nil)
		store.clearErr = errors.New("store is down")
		w := httptest.NewRecorder()
		err := p.Logout(w, httptest.NewRequest(http.MethodGet, "/logout", nil))
		require.Error(err)
		assert.Empty(w.Header().Get("Location"))
	})
}

func TestProvider_Callback(t *testing.T) {
	t.Parallel()

	validParams := func() url.Values {
		return url.Values{"code": {TestAuthCode}, "state": {"S1"}}
	}
	previous := &Session{
		Username: "bob",
		Id:       "previous-subject",
		Groups:   []string{"stale"},
		Email:    "bob@example.com",
		Expires:  time.Now().Add(time.Hour),
	}

	tests := []struct {
		name          string
		setup         func(*TestProvider)
		settings      map[string]string
		params        url.Values
		wantIsErr     []error
		wantTokenReqs int
		check         func(*testing.T, *TestProvider, *Session)
	}{
		{
			name:          "success",
			params:        validParams(),
			wantTokenReqs: 1,
			check: func(t *testing.T, tp *TestProvider, s *Session) {
				assert := assert.New(t)
				assert.Equal("alice", s.Username)
				assert.Equal("a8d1f0e2-6c4b-4a7b-9f57-0c5b1c1f2e33", s.Id)
				assert.Equal([]string{"admins", "readers"}, s.Groups)
				assert.Equal("alice@example.com", s.Email)
				assert.Equal(RefreshToken(TestRefreshToken), s.RefreshToken)
				assert.WithinDuration(time.Now().Add(time.Hour), s.Expires, time.Minute)
			},
		},
		{
			name: "success-without-groups-email-or-refresh-token",
			setup: func(tp *TestProvider) {
				tp.SetUser("carol", "c0ffee", "", nil)
				tp.SetRefreshToken("")
			},
			params:        validParams(),
			wantTokenReqs: 1,
			check: func(t *testing.T, tp *TestProvider, s *Session) {
				assert := assert.New(t)
				assert.Equal("carol", s.Username)
				assert.Equal("c0ffee", s.Id)
				assert.Nil(s.Groups)
				assert.Empty(s.Email)
				assert.Empty(s.RefreshToken)
			},
		},
		{
			name:          "success-without-state-configured",
			settings:      map[string]string{EnvState: ""},
			params:        url.Values{"code": {TestAuthCode}, "state": {"anything"}},
			wantTokenReqs: 1,
		},
		{
			name:          "csrf-mismatch",
			params:        url.Values{"code": {TestAuthCode}, "state": {"forged"}},
			wantIsErr:     []error{ErrCsrfMismatch},
			wantTokenReqs: 0,
		},
		{
			name:          "csrf-missing",
			params:        url.Values{"code": {TestAuthCode}},
			wantIsErr:     []error{ErrCsrfMismatch},
			wantTokenReqs: 0,
		},
		{
			name:          "provider-error",
			params:        url.Values{"error": {"access_denied"}, "error_description": {"user cancelled"}, "state": {"S1"}},
			wantIsErr:     []error{ErrAuthenticationFailed},
			wantTokenReqs: 0,
		},
		{
			name:          "missing-code",
			params:        url.Values{"state": {"S1"}},
			wantIsErr:     []error{ErrInvalidParameter},
			wantTokenReqs: 0,
		},
		{
			name:          "unexpected-code",
			params:        url.Values{"code": {"not-the-code"}, "state": {"S1"}},
			wantIsErr:     []error{ErrExchange},
			wantTokenReqs: 1,
		},
		{
			name:          "wrong-client-secret",
			settings:      map[string]string{EnvClientSecret: "not-the-secret"},
			params:        validParams(),
			wantIsErr:     []error{ErrExchange},
			wantTokenReqs: 1,
		},
		{
			name:          "token-endpoint-failure",
			setup:         func(tp *TestProvider) { tp.SetTokenStatus(http.StatusInternalServerError) },
			params:        validParams(),
			wantIsErr:     []error{ErrExchange},
			wantTokenReqs: 1,
		},
		{
			name:          "token-endpoint-timeout",
			setup:         func(tp *TestProvider) { tp.SetTokenDelay(2 * time.Second) },
			settings:      map[string]string{EnvHttpTimeout: "100ms"},
			params:        validParams(),
			wantIsErr:     []error{ErrNetwork},
			wantTokenReqs: 1,
		},
		{
			name:          "missing-id-token",
			setup:         func(tp *TestProvider) { tp.OmitIDTokens() },
			params:        validParams(),
			wantIsErr:     []error{ErrExchange},
			wantTokenReqs: 1,
		},
		{
			name:          "jwks-unavailable",
			setup:         func(tp *TestProvider) { tp.SetJWKSStatus(http.StatusServiceUnavailable) },
			params:        validParams(),
			wantIsErr:     []error{ErrNetwork, jwt.ErrKeySetFetch},
			wantTokenReqs: 1,
		},
		{
			name:          "unknown-kid",
			setup:         func(tp *TestProvider) { tp.SignWithUnknownKey() },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification, jwt.ErrKeyNotFound},
			wantTokenReqs: 1,
		},
		{
			name:          "invalid-at-hash",
			setup:         func(tp *TestProvider) { tp.InvalidateAtHash() },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification, jwt.ErrTokenBinding},
			wantTokenReqs: 1,
		},
		{
			name:          "expired",
			setup:         func(tp *TestProvider) { tp.IssueExpiredTokens() },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification, jwt.ErrExpired},
			wantTokenReqs: 1,
		},
		{
			name:          "wrong-audience",
			setup:         func(tp *TestProvider) { tp.SetCustomClaims(map[string]interface{}{"aud": "another-client"}) },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification, jwt.ErrInvalidAudience},
			wantTokenReqs: 1,
		},
		{
			name:          "missing-username",
			setup:         func(tp *TestProvider) { tp.SetCustomClaims(map[string]interface{}{"cognito:username": nil}) },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification},
			wantTokenReqs: 1,
		},
		{
			name:          "groups-not-a-list",
			setup:         func(tp *TestProvider) { tp.SetCustomClaims(map[string]interface{}{"cognito:groups": "admins"}) },
			params:        validParams(),
			wantIsErr:     []error{ErrTokenVerification},
			wantTokenReqs: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			tp := StartTestProvider(t)
			if tt.setup != nil {
				tt.setup(tp)
			}
			settings := map[string]string{EnvState: "S1"}
			for k, v := range tt.settings {
				settings[k] = v
			}
			p, store := testNewProvider(t, tp, settings)
			store.session = previous.Clone()

			w := httptest.NewRecorder()
			got, err := p.Callback(context.Background(), w, testCallbackRequest(tt.params))
			assert.Equal(tt.wantTokenReqs, tp.TokenRequests())
			if len(tt.wantIsErr) > 0 {
				require.Error(err)
				assert.Nil(got)
				for _, want := range tt.wantIsErr {
					assert.Truef(errors.Is(err, want), "wanted \"%s\" but got \"%s\"", want, err)
				}
				// a failed callback never touches the stored session
				assert.Equal(0, store.sets)
				assert.Equal(previous, store.session)
				return
			}
			require.NoError(err)
			assert.Equal(1, store.sets)
			assert.Equal(got, store.session)
			if tt.check != nil {
				tt.check(t, tp, got)
			}
		})
	}
}

func TestProvider_Callback_WrongIssuer(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p, store := testNewProvider(t, tp, nil)
	tp.SetCustomClaims(map[string]interface{}{"iss": "https://evil.example.com"})

	got, err := p.Callback(context.Background(), httptest.NewRecorder(), testCallbackRequest(url.Values{"code": {TestAuthCode}}))
	require.Error(err)
	assert.Nil(got)
	assert.True(errors.Is(err, ErrTokenVerification))
	assert.True(errors.Is(err, jwt.ErrInvalidIssuer))
	assert.Equal(0, store.sets)
}

func TestProvider_Callback_StoreFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p, store := testNewProvider(t, tp, nil)
	store.setErr = errors.New("store is down")

	got, err := p.Callback(context.Background(), httptest.NewRecorder(), testCallbackRequest(url.Values{"code": {TestAuthCode}}))
	require.Error(err)
	assert.Nil(got)
	assert.Equal(1, store.sets)
	assert.Nil(store.session)
}

func TestProvider_Callback_KeySetFetchedOnce(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p, _ := testNewProvider(t, tp, nil)

	for i := 0; i < 3; i++ {
		_, err := p.Callback(context.Background(), httptest.NewRecorder(), testCallbackRequest(url.Values{"code": {TestAuthCode}}))
		require.NoError(err)
	}
	assert.Equal(3, tp.TokenRequests())
	assert.Equal(1, tp.JWKSRequests())
	assert.Equal(1, p.KeySetCache().Fetches())
}

func TestProvider_Callback_KeySetRetriedAfterFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p, _ := testNewProvider(t, tp, nil)
	params := url.Values{"code": {TestAuthCode}}

	tp.SetJWKSStatus(http.StatusInternalServerError)
	_, err := p.Callback(context.Background(), httptest.NewRecorder(), testCallbackRequest(params))
	require.Error(err)
	assert.True(errors.Is(err, ErrNetwork))

	tp.SetJWKSStatus(0)
	_, err = p.Callback(context.Background(), httptest.NewRecorder(), testCallbackRequest(params))
	require.NoError(err)
	assert.Equal(2, tp.JWKSRequests())
}

func TestProvider_ActiveSession(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	clock := clockwork.NewFakeClock()
	p, store := testNewProvider(t, tp, nil, WithClock(clock))
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	s, err := p.ActiveSession(r)
	require.NoError(err)
	assert.Nil(s)

	store.session = &Session{Username: "alice", Expires: clock.Now().Add(time.Minute)}
	s, err = p.ActiveSession(r)
	require.NoError(err)
	require.NotNil(s)
	assert.Equal("alice", s.Username)

	clock.Advance(time.Minute)
	s, err = p.ActiveSession(r)
	require.NoError(err)
	assert.Nil(s)

	store.getErr = errors.New("corrupt")
	_, err = p.ActiveSession(r)
	require.Error(err)
}
