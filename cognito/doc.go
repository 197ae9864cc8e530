/*
cognito is a package for authenticating the users of a web application with
an AWS Cognito user pool's hosted UI, using the OAuth2 authorization code
flow.

Primary types provided by the package:

* Config: the user pool's app client settings, read from a ConfigProvider
(MapProvider, EnvProvider, DotEnvProvider or ViperProvider) and validated.

* Provider: runs the flow. It builds the login and logout redirects, and
handles the callback: the authorization code is exchanged for tokens, the
tokens are verified against the user pool's JWKS and the resulting Session is
written through a SessionStore.

* Session: the authenticated user, built from the id_token's claims.

* SessionStore: persists a request's Session. See the session package for
implementations.

* TestProvider: a local emulator of the user pool's token endpoint and JWKS
for tests.

The handler package provides net/http handlers composing a Provider.

Example:

	c, err := cognito.NewConfig(cognito.EnvProvider{})
	if err != nil {
		// handle err
	}
	p, err := cognito.NewProvider(c, session.NewMemoryStore())
	if err != nil {
		// handle err
	}
	http.Handle("/login", handler.Login(p))
	http.Handle("/callback", handler.Callback(p, homeHandler))
	http.Handle("/logout", handler.Logout(p))
	http.Handle("/home", handler.RequireSession(p, homeHandler))
*/
package cognito
