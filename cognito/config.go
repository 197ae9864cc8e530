package cognito

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hashicorp/cap-cognito/internal/strutils"
	sdkHttp "github.com/hashicorp/cap-cognito/sdk/http"
)

// Setting names read by NewConfig.
const (
	EnvRegion           = "COGNITO_REGION"
	EnvUserPoolId       = "COGNITO_USER_POOL_ID"
	EnvClientId         = "COGNITO_CLIENT_ID"
	EnvClientSecret     = "COGNITO_CLIENT_SECRET"
	EnvDomain           = "COGNITO_DOMAIN"
	EnvRedirectUri      = "COGNITO_REDIRECT_URI"
	EnvSignoutUri       = "COGNITO_SIGNOUT_URI"
	EnvErrorRedirectUri = "ERROR_REDIRECT_URI"
	EnvState            = "COGNITO_STATE"
	EnvExemptMethods    = "EXEMPT_METHODS"
	EnvIssuerUrl        = "COGNITO_ISSUER_URL"
	EnvProviderCA       = "COGNITO_PROVIDER_CA"
	EnvHttpTimeout      = "COGNITO_HTTP_TIMEOUT"
	EnvTLSMinVersion    = "COGNITO_TLS_MIN_VERSION"
)

// requiredSettings lists the required settings, in validation order, with the
// message reported when one is missing.
var requiredSettings = []struct {
	key string
	msg string
	get func(*Config) string
}{
	{EnvRegion, "COGNITO_REGION must be specified.", func(c *Config) string { return c.Region }},
	{EnvUserPoolId, "COGNITO_USER_POOL_ID must be specified to locate the auth url.", func(c *Config) string { return c.UserPoolId }},
	{EnvClientId, "COGNITO_CLIENT_ID must be set to validate the audience claim.", func(c *Config) string { return c.ClientId }},
	{EnvClientSecret, "COGNITO_CLIENT_SECRET must be set to validate the audience claim.", func(c *Config) string { return string(c.ClientSecret) }},
	{EnvDomain, "COGNITO_DOMAIN must be set to validate the token redirect to create endpoint url.", func(c *Config) string { return c.Domain }},
	{EnvRedirectUri, "COGNITO_REDIRECT_URI must be set to obtain callback url.", func(c *Config) string { return c.RedirectUrl }},
	{EnvSignoutUri, "COGNITO_SIGNOUT_URI must be set for logout callback.", func(c *Config) string { return c.SignoutUrl }},
}

// DefaultExemptMethods are the request methods RequireSession lets through
// when EXEMPT_METHODS isn't set.
var DefaultExemptMethods = []string{http.MethodOptions}

// ClientSecret is an oauth client secret
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration of a Cognito user pool app client
// using the authorization code flow.
type Config struct {
	// Region is the AWS region of the user pool, e.g. us-east-1
	Region string

	// UserPoolId identifies the user pool, e.g. us-east-1_myPoolId
	UserPoolId string

	// ClientId is the app client id
	ClientId string

	// ClientSecret is the app client secret
	ClientSecret ClientSecret

	// Domain is the user pool's hosted UI domain. It always carries a scheme
	// once normalized by NewConfig.
	Domain string

	// RedirectUrl is the callback url registered for the app client.
	RedirectUrl string

	// SignoutUrl is where the hosted UI sends the user after logout.
	SignoutUrl string

	// ErrorRedirectUrl is an optional url to redirect to when a callback
	// fails. When empty, a generic error response is returned instead.
	ErrorRedirectUrl string

	// State is an optional CSRF state sent with the login redirect and
	// required on the callback.
	State string

	// ExemptMethods are request methods that don't require a session.
	ExemptMethods []string

	// IssuerUrl optionally overrides the issuer derived from Region and
	// UserPoolId. It's used with emulators.
	IssuerUrl string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// Timeout bounds each request to the provider.
	Timeout time.Duration

	// TLSMinVersion is the minimum TLS version used with the provider: tls10,
	// tls11, tls12 or tls13. Empty selects tls12.
	TLSMinVersion string
}

// NewConfig reads a Config from the ConfigProvider, normalizes it and
// validates it. All missing settings are reported together; each matches
// ErrConfiguration and can be retrieved with errors.As as a
// *ConfigurationError.
func NewConfig(p ConfigProvider) (*Config, error) {
	const op = "cognito.NewConfig"
	if p == nil {
		return nil, fmt.Errorf("%s: config provider is nil: %w", op, ErrNilParameter)
	}
	get := func(key string) string {
		v, _ := p.Lookup(key)
		return strings.TrimSpace(v)
	}

	c := &Config{
		Region:           get(EnvRegion),
		UserPoolId:       get(EnvUserPoolId),
		ClientId:         get(EnvClientId),
		ClientSecret:     ClientSecret(get(EnvClientSecret)),
		Domain:           normalizeDomain(get(EnvDomain)),
		RedirectUrl:      get(EnvRedirectUri),
		SignoutUrl:       get(EnvSignoutUri),
		ErrorRedirectUrl: get(EnvErrorRedirectUri),
		State:            get(EnvState),
		ExemptMethods:    normalizeMethods(strutils.SplitTrimmed(get(EnvExemptMethods), ",")),
		IssuerUrl:        get(EnvIssuerUrl),
		ProviderCA:       get(EnvProviderCA),
		Timeout:          sdkHttp.DefaultTimeout,
		TLSMinVersion:    strings.ToLower(get(EnvTLSMinVersion)),
	}

	var result *multierror.Error
	if raw := get(EnvHttpTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			result = multierror.Append(result, &ConfigurationError{
				Key: EnvHttpTimeout,
				Msg: "COGNITO_HTTP_TIMEOUT must be a positive duration.",
			})
		} else {
			c.Timeout = d
		}
	}
	if err := c.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. Every missing required setting is reported as
// a *ConfigurationError and the errors are aggregated.
func (c *Config) Validate() error {
	const op = "cognito.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	for _, s := range requiredSettings {
		if s.get(c) == "" {
			result = multierror.Append(result, &ConfigurationError{Key: s.key, Msg: s.msg})
		}
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, &ConfigurationError{
			Key: EnvHttpTimeout,
			Msg: "COGNITO_HTTP_TIMEOUT must be a positive duration.",
		})
	}
	if c.TLSMinVersion != "" && !sdkHttp.ValidTLSVersion(c.TLSMinVersion) {
		result = multierror.Append(result, &ConfigurationError{
			Key: EnvTLSMinVersion,
			Msg: "COGNITO_TLS_MIN_VERSION must be one of tls10, tls11, tls12 or tls13.",
		})
	}
	return result.ErrorOrNil()
}

// Issuer returns the user pool's issuer:
// https://cognito-idp.{region}.amazonaws.com/{user pool id}
func (c *Config) Issuer() string {
	if c.IssuerUrl != "" {
		return strings.TrimSuffix(c.IssuerUrl, "/")
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolId)
}

// PublicKeyUrl returns the url of the user pool's JWKS.
func (c *Config) PublicKeyUrl() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// TokenUrl returns the hosted UI's token endpoint.
func (c *Config) TokenUrl() string {
	return c.Domain + "/oauth2/token"
}

// LoginUrl returns the hosted UI's login url. The state parameter is only
// included when a State is configured.
func (c *Config) LoginUrl() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/authorize?client_id=%s&response_type=code", c.Domain, c.ClientId)
	if c.State != "" {
		fmt.Fprintf(&sb, "&state=%s", c.State)
	}
	fmt.Fprintf(&sb, "&redirect_uri=%s", c.RedirectUrl)
	return sb.String()
}

// LogoutUrl returns the hosted UI's logout url.
func (c *Config) LogoutUrl() string {
	return fmt.Sprintf("%s/logout?response_type=code&client_id=%s&logout_uri=%s", c.Domain, c.ClientId, c.SignoutUrl)
}

// IsExempt reports whether requests with the method don't require a
// session.
func (c *Config) IsExempt(method string) bool {
	return strutils.StrListContains(c.ExemptMethods, strings.ToUpper(method))
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "cognito.(Config).HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA, c.Timeout, sdkHttp.WithTLSMinVersion(c.TLSMinVersion))
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// normalizeDomain prefixes the domain with https:// when it carries no
// scheme.
func normalizeDomain(d string) string {
	if d == "" {
		return ""
	}
	d = strings.TrimSuffix(d, "/")
	if !strings.Contains(d, "://") {
		d = "https://" + d
	}
	return d
}

func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return append([]string(nil), DefaultExemptMethods...)
	}
	upper := cases.Upper(language.Und)
	for i, m := range methods {
		methods[i] = upper.String(m)
	}
	return strutils.RemoveDuplicatesStable(methods, false)
}
