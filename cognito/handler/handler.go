// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/cap-cognito/cognito"
)

// FailureMessage is the message of the generic response sent when a
// callback fails and no error redirect is configured.
const FailureMessage = "Something went wrong during authentication"

// failureResponse is the generic callback failure body.
type failureResponse struct {
	Error string `json:"Error"`
}

// Login creates a handler which redirects to the hosted UI's login page.
func Login(p *cognito.Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Login(w, r)
	})
}

// Callback creates the handler for the redirect back from the hosted UI.
// When the callback succeeds, next is called with the new session in the
// request's context (see FromContext). When it fails, the request is
// redirected to the configured ErrorRedirectUrl or, when there is none,
// answered with a 500 and a generic JSON error. The failure's cause is
// logged, never returned to the client.
func Callback(p *cognito.Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := p.Callback(r.Context(), w, r)
		if err != nil {
			writeFailure(p, w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// Logout creates a handler which clears the session and redirects to the
// hosted UI's logout page.
func Logout(p *cognito.Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.Logout(w, r); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
}

// RequireSession creates a handler which only calls next for requests with
// an unexpired session, adding it to the request's context. Other requests
// are redirected to the hosted UI's login page. Requests whose method is in
// the Config's ExemptMethods are passed to next untouched.
func RequireSession(p *cognito.Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.RequireSession"
		if p.Config().IsExempt(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		s, err := p.ActiveSession(r)
		if err != nil {
			// an unreadable session is treated as no session
			p.Logger().Warn("unable to read session", "op", op, "error", err)
		}
		if s == nil {
			p.Login(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

func writeFailure(p *cognito.Provider, w http.ResponseWriter, r *http.Request) {
	if u := p.Config().ErrorRedirectUrl; u != "" {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	body, _ := json.Marshal(failureResponse{Error: FailureMessage})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(body)
}
