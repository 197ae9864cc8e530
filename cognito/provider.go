package cognito

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/hashicorp/cap-cognito/jwt"
	sdkHttp "github.com/hashicorp/cap-cognito/sdk/http"
)

// Claims read from a Cognito id_token.
const (
	ClaimUsername = "cognito:username"
	ClaimGroups   = "cognito:groups"
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimExpiry   = "exp"
)

// Provider runs the authorization code flow against a Cognito user pool:
// login and logout redirects, the callback's code exchange, token
// verification and writing the resulting Session.
//
// A Provider owns its key set cache, which is filled by the first callback
// and kept for the life of the Provider. It is safe for concurrent use.
type Provider struct {
	config   *Config
	store    SessionStore
	client   *http.Client
	keySets  *jwt.KeySetCache
	verifier *jwt.Verifier
	logger   hclog.Logger
	clock    clockwork.Clock
}

// NewProvider creates a Provider for the Config, writing sessions through
// the store.
// Supported options: WithLogger, WithHttpClient, WithKeySetCache, WithClock
func NewProvider(c *Config, store SessionStore, opt ...Option) (*Provider, error) {
	const op = "cognito.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	client := opts.withHttpClient
	if client == nil {
		var err error
		if client, err = c.HttpClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	keySets := opts.withKeySetCache
	if keySets == nil {
		var err error
		keySets, err = jwt.NewKeySetCache(
			c.PublicKeyUrl(),
			jwt.WithHttpClient(client),
			jwt.WithTimeout(c.Timeout),
			jwt.WithLogger(opts.withLogger.Named("jwks")),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create key set cache: %w", op, err)
		}
	}

	verifier, err := jwt.NewVerifier(jwt.WithClock(opts.withClock))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create verifier: %w", op, err)
	}

	return &Provider{
		config:   c,
		store:    store,
		client:   client,
		keySets:  keySets,
		verifier: verifier,
		logger:   opts.withLogger,
		clock:    opts.withClock,
	}, nil
}

// Config returns the Provider's Config.
func (p *Provider) Config() *Config { return p.config }

// Logger returns the Provider's logger.
func (p *Provider) Logger() hclog.Logger { return p.logger }

// KeySetCache returns the Provider's key set cache.
func (p *Provider) KeySetCache() *jwt.KeySetCache { return p.keySets }

// LoginUrl returns the hosted UI url to send a user to for login.
func (p *Provider) LoginUrl() string {
	return p.config.LoginUrl()
}

// LogoutUrl returns the hosted UI url to send a user to for logout.
func (p *Provider) LogoutUrl() string {
	return p.config.LogoutUrl()
}

// Login redirects the request to the hosted UI's login page.
func (p *Provider) Login(w http.ResponseWriter, r *http.Request) {
	const op = "cognito.(Provider).Login"
	p.logger.Debug("redirecting to login", "op", op)
	http.Redirect(w, r, p.LoginUrl(), http.StatusFound)
}

// Logout clears the request's session and redirects it to the hosted UI's
// logout page. Tokens are not revoked. When the session can't be cleared,
// nothing is written to w and the error is returned.
func (p *Provider) Logout(w http.ResponseWriter, r *http.Request) error {
	const op = "cognito.(Provider).Logout"
	if err := p.store.Clear(w, r); err != nil {
		p.logger.Error("unable to clear session", "op", op, "error", err)
		return fmt.Errorf("%s: unable to clear session: %w", op, err)
	}
	p.logger.Debug("session cleared, redirecting to logout", "op", op)
	http.Redirect(w, r, p.LogoutUrl(), http.StatusFound)
	return nil
}

// Session returns the request's stored session, or nil when there is none.
// The session may be expired.
func (p *Provider) Session(r *http.Request) (*Session, error) {
	const op = "cognito.(Provider).Session"
	s, err := p.store.Get(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// ActiveSession returns the request's session when it exists and hasn't
// expired, otherwise nil.
func (p *Provider) ActiveSession(r *http.Request) (*Session, error) {
	s, err := p.Session(r)
	if err != nil {
		return nil, err
	}
	if s.IsExpired(p.clock.Now()) {
		return nil, nil
	}
	return s, nil
}

// Callback handles the redirect back from the hosted UI. It checks the CSRF
// state, exchanges the code for tokens, verifies them and then stores the
// Session built from their claims. The store is written exactly once, and
// only when every step succeeded.
//
// Errors match one of: ErrAuthenticationFailed, ErrInvalidParameter,
// ErrCsrfMismatch, ErrNetwork, ErrExchange or ErrTokenVerification.
func (p *Provider) Callback(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	const op = "cognito.(Provider).Callback"
	s, err := p.callback(ctx, w, r)
	if err != nil {
		p.logger.Error("authentication failed", "op", op, "error", err)
		return nil, err
	}
	p.logger.Info("authenticated", "op", op, "username", s.Username)
	return s, nil
}

func (p *Provider) callback(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	const op = "cognito.(Provider).Callback"

	// get parameters from either the body or query parameters.
	// FormValue prioritizes body values, if found.
	if e := r.FormValue("error"); e != "" {
		return nil, fmt.Errorf("%s: %s: %s: %w", op, e, r.FormValue("error_description"), ErrAuthenticationFailed)
	}
	code := r.FormValue("code")
	if code == "" {
		return nil, fmt.Errorf("%s: code is missing: %w", op, ErrInvalidParameter)
	}
	if p.config.State != "" {
		if subtle.ConstantTimeCompare([]byte(r.FormValue("state")), []byte(p.config.State)) != 1 {
			return nil, fmt.Errorf("%s: %w", op, ErrCsrfMismatch)
		}
	}

	tk, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := p.VerifyToken(ctx, tk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := p.store.Set(w, r, s); err != nil {
		return nil, fmt.Errorf("%s: unable to store session: %w", op, err)
	}
	return s, nil
}

// Exchange exchanges an authorization code for tokens at the token endpoint,
// authenticating with the client id and secret. A non-2xx response or a
// response without both an access_token and id_token is an ErrExchange; a
// transport failure or timeout is an ErrNetwork.
func (p *Provider) Exchange(ctx context.Context, code string) (*Token, error) {
	const op = "cognito.(Provider).Exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: code is empty: %w", op, ErrInvalidParameter)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	oauth2Config := oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectUrl,
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.config.TokenUrl(),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	oauth2Token, err := oauth2Config.Exchange(
		sdkHttp.ClientContext(ctx, p.client),
		code,
		oauth2.SetAuthURLParam("client_id", p.config.ClientId),
	)
	if err != nil {
		var rErr *oauth2.RetrieveError
		var uErr *url.Error
		switch {
		case errors.As(err, &rErr):
			status := 0
			if rErr.Response != nil {
				status = rErr.Response.StatusCode
			}
			p.logger.Warn("token endpoint rejected the code", "op", op, "status", status, "error_code", rErr.ErrorCode)
			return nil, fmt.Errorf("%s: token endpoint returned %d: %w", op, status, ErrExchange)
		case errors.As(err, &uErr), ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
		default:
			return nil, fmt.Errorf("%s: %w: %w", op, ErrExchange, err)
		}
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing: %w", op, ErrExchange)
	}
	return &Token{
		AccessToken:  AccessToken(oauth2Token.AccessToken),
		IdToken:      IdToken(idToken),
		RefreshToken: RefreshToken(oauth2Token.RefreshToken),
		Expiry:       oauth2Token.Expiry,
	}, nil
}

// VerifyToken verifies the access_token, then the id_token bound to it with
// at_hash, and returns the Session built from the id_token's claims. The key
// set is fetched when the Provider hasn't loaded it yet.
func (p *Provider) VerifyToken(ctx context.Context, tk *Token) (*Session, error) {
	const op = "cognito.(Provider).VerifyToken"
	if tk == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	ks, err := p.keySets.EnsureLoaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}

	issuer := p.config.Issuer()
	if _, err := p.verifier.Verify(string(tk.AccessToken), ks, jwt.Expected{Issuer: issuer}); err != nil {
		return nil, fmt.Errorf("%s: access_token: %w: %w", op, ErrTokenVerification, err)
	}
	claims, err := p.verifier.Verify(string(tk.IdToken), ks, jwt.Expected{
		Issuer:      issuer,
		Audience:    p.config.ClientId,
		AccessToken: string(tk.AccessToken),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: id_token: %w: %w", op, ErrTokenVerification, err)
	}

	s, err := sessionFromClaims(claims, tk.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: id_token: %w: %w", op, ErrTokenVerification, err)
	}
	return s, nil
}

func sessionFromClaims(claims map[string]interface{}, refreshToken RefreshToken) (*Session, error) {
	username, ok := claims[ClaimUsername].(string)
	if !ok || username == "" {
		return nil, fmt.Errorf("%s claim is missing", ClaimUsername)
	}
	sub, ok := claims[ClaimSubject].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%s claim is missing", ClaimSubject)
	}

	var groups []string
	if raw, ok := claims[ClaimGroups]; ok && raw != nil {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s claim is not a list", ClaimGroups)
		}
		groups = make([]string, 0, len(list))
		for _, g := range list {
			name, ok := g.(string)
			if !ok {
				return nil, fmt.Errorf("%s claim contains a non-string value", ClaimGroups)
			}
			groups = append(groups, name)
		}
	}

	var email string
	if raw, ok := claims[ClaimEmail]; ok {
		if email, ok = raw.(string); !ok {
			return nil, fmt.Errorf("%s claim is not a string", ClaimEmail)
		}
	}

	exp, ok := claims[ClaimExpiry].(float64)
	if !ok {
		return nil, fmt.Errorf("%s claim is not a number", ClaimExpiry)
	}

	return &Session{
		Username:     username,
		Id:           sub,
		Groups:       groups,
		Email:        email,
		Expires:      time.Unix(int64(exp), 0),
		RefreshToken: refreshToken,
	}, nil
}
