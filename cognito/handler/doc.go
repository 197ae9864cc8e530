// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// handler provides net/http handlers which run a cognito.Provider's
// authorization code flow. They're composed explicitly when routes are
// registered:
//
//	mux.Handle("/login", handler.Login(p))
//	mux.Handle("/cognito/callback", handler.Callback(p, afterLogin))
//	mux.Handle("/logout", handler.Logout(p))
//	mux.Handle("/home", handler.RequireSession(p, home))
package handler
