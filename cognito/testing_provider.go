package cognito

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-cognito/internal/strutils"
	"github.com/hashicorp/cap-cognito/jwt"
)

// Defaults used by a TestProvider until they're changed with its setters.
const (
	TestClientId     = "123drfthinvdr57opQWerv56"
	TestClientSecret = "mysupersecretclientid"
	TestAuthCode     = "test-auth-code"
	TestRedirectUrl  = "http://localhost:5000/cognito/callback"
	TestSignoutUrl   = "http://localhost:5000/login"
	TestRefreshToken = "test-refresh-token"
	TestKeyId        = "test-signing-key"
)

// TestProvider is a local TLS server which emulates a Cognito user pool's
// token endpoint and JWKS, which makes writing tests much easier. Tokens are
// signed with RS256 and the id_token carries an at_hash bound to the
// access_token, like the tokens Cognito issues.
//
// The TestProvider's url is both the issuer and the hosted UI domain, see
// ConfigValues.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	signingKey *rsa.PrivateKey

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	allowedRedirectURIs []string
	username            string
	subject             string
	email               string
	groups              []string
	refreshToken        string
	customClaims        map[string]interface{}
	tokenStatus         int
	jwksStatus          int
	tokenDelay          time.Duration
	omitIDToken         bool
	invalidAtHash       bool
	unknownKeyID        bool
	expired             bool
	jwksRequests        int
	tokenRequests       int

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		clientID:            TestClientId,
		clientSecret:        TestClientSecret,
		expectedAuthCode:    TestAuthCode,
		allowedRedirectURIs: []string{TestRedirectUrl},
		username:            "alice",
		subject:             "a8d1f0e2-6c4b-4a7b-9f57-0c5b1c1f2e33",
		email:               "alice@example.com",
		groups:              []string{"admins", "readers"},
		refreshToken:        TestRefreshToken,
		t:                   t,
	}
	var err error
	p.signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// ConfigValues returns the settings for a Config which uses the
// TestProvider as its user pool.
func (p *TestProvider) ConfigValues() MapProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MapProvider{
		EnvRegion:       "us-east-1",
		EnvUserPoolId:   "us-east-1_testPool",
		EnvClientId:     p.clientID,
		EnvClientSecret: p.clientSecret,
		EnvDomain:       p.Addr(),
		EnvRedirectUri:  TestRedirectUrl,
		EnvSignoutUri:   TestSignoutUrl,
		EnvIssuerUrl:    p.Addr(),
		EnvProviderCA:   p.caCert,
	}
}

// SetClientCreds is for configuring the app client credentials the token
// endpoint accepts.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code the token endpoint accepts.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs configures the redirect URIs the token endpoint
// accepts. If not configured TestRedirectUrl is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetUser configures the user the issued tokens are about. A nil groups
// omits the cognito:groups claim and an empty email omits the email claim.
func (p *TestProvider) SetUser(username, subject, email string, groups []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.username = username
	p.subject = subject
	p.email = email
	p.groups = groups
}

// SetRefreshToken configures the refresh_token returned by the token
// endpoint. An empty token is omitted from the response.
func (p *TestProvider) SetRefreshToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshToken = token
}

// SetCustomClaims lets you set claims to add to the id_token. A nil value
// removes the claim.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetTokenStatus forces the token endpoint to fail with the status. Zero
// restores normal responses.
func (p *TestProvider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetJWKSStatus forces the JWKS endpoint to fail with the status. Zero
// restores normal responses.
func (p *TestProvider) SetJWKSStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jwksStatus = status
}

// SetTokenDelay delays the token endpoint's responses.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// OmitIDTokens forces an error state where the token endpoint does not
// return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// InvalidateAtHash makes the id_token's at_hash not match the access_token.
func (p *TestProvider) InvalidateAtHash() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidAtHash = true
}

// SignWithUnknownKey makes issued tokens name a kid the JWKS doesn't
// publish, as if the pool's keys had rotated.
func (p *TestProvider) SignWithUnknownKey() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unknownKeyID = true
}

// IssueExpiredTokens makes issued tokens already expired.
func (p *TestProvider) IssueExpiredTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = true
}

// JWKSRequests returns the number of requests made to the JWKS endpoint.
func (p *TestProvider) JWKSRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jwksRequests
}

// TokenRequests returns the number of requests made to the token endpoint.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// SignedToken signs the claims with the TestProvider's key. Use it to build
// tokens the TestProvider's JWKS verifies.
func (p *TestProvider) SignedToken(claims map[string]interface{}) string {
	return jwt.TestSignJWT(p.t, p.signingKey, jwt.RS256, claims, TestKeyId)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/jwks.json":
		p.mu.Lock()
		defer p.mu.Unlock()
		p.jwksRequests++

		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.jwksStatus != 0 {
			w.WriteHeader(p.jwksStatus)
			return
		}
		_, _ = w.Write(jwt.TestKeySetJSON(p.t, jwt.NewSigningKey(TestKeyId, jwt.RS256, p.signingKey.Public())))

	case "/oauth2/token":
		p.mu.Lock()
		p.tokenRequests++
		delay := p.tokenDelay
		p.mu.Unlock()

		// the delay is served without holding the lock, so other endpoints
		// stay responsive.
		if delay > 0 {
			select {
			case <-req.Context().Done():
				return
			case <-time.After(delay):
			}
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		p.serveToken(w, req)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, secret, ok := req.BasicAuth()
	if ok {
		// the oauth2 package url encodes the credentials
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	}
	switch {
	case !ok || id != p.clientID || secret != p.clientSecret:
		_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	case req.FormValue("grant_type") != "authorization_code":
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		return
	case req.FormValue("client_id") != p.clientID:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "client_id does not match")
		return
	case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		return
	case req.FormValue("code") != p.expectedAuthCode:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	case p.tokenStatus != 0:
		_ = p.writeTokenErrorResponse(w, p.tokenStatus, "server_error", "forced failure")
		return
	}

	now := time.Now()
	exp := now.Add(time.Hour)
	if p.expired {
		exp = now.Add(-time.Minute)
	}
	kid := TestKeyId
	if p.unknownKeyID {
		kid = "rotated-" + TestKeyId
	}

	accessToken := jwt.TestSignJWT(p.t, p.signingKey, jwt.RS256, map[string]interface{}{
		"iss":       p.Addr(),
		"sub":       p.subject,
		"client_id": p.clientID,
		"token_use": "access",
		"scope":     "openid email",
		"username":  p.username,
		"auth_time": now.Unix(),
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
	}, kid)

	atHash, err := jwt.AccessTokenHash(jwt.RS256, accessToken)
	require.NoError(p.t, err)
	if p.invalidAtHash {
		atHash, err = jwt.AccessTokenHash(jwt.RS256, accessToken+"-substituted")
		require.NoError(p.t, err)
	}

	idClaims := map[string]interface{}{
		"iss":              p.Addr(),
		"aud":              p.clientID,
		"sub":              p.subject,
		"token_use":        "id",
		"cognito:username": p.username,
		"auth_time":        now.Unix(),
		"iat":              now.Unix(),
		"exp":              exp.Unix(),
		"at_hash":          atHash,
	}
	if p.email != "" {
		idClaims["email"] = p.email
		idClaims["email_verified"] = true
	}
	if p.groups != nil {
		idClaims["cognito:groups"] = p.groups
	}
	for k, v := range p.customClaims {
		if v == nil {
			delete(idClaims, k)
			continue
		}
		idClaims[k] = v
	}

	reply := struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token,omitempty"`
		RefreshToken string `json:"refresh_token,omitempty"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}{
		AccessToken:  accessToken,
		IDToken:      jwt.TestSignJWT(p.t, p.signingKey, jwt.RS256, idClaims, kid),
		RefreshToken: p.refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(exp).Seconds()),
	}
	if p.omitIDToken {
		reply.IDToken = ""
	}
	_ = p.writeJSON(w, &reply)
}
