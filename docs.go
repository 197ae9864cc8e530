// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// cap-cognito provides a collection of related packages which sign the users
// of a web application in with an AWS Cognito user pool, using the OAuth2
// authorization code flow and JWT verification against the pool's JWKS.
//
//   - cognito: configuration and the authorization code flow
//   - cognito/handler: net/http handlers for login, callback and logout
//   - jwt: key set caching and token verification
//   - session: session stores
package cap
