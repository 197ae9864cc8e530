// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cap_test

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hashicorp/cap-cognito/cognito"
	"github.com/hashicorp/cap-cognito/cognito/handler"
	"github.com/hashicorp/cap-cognito/jwt"
	"github.com/hashicorp/cap-cognito/session"
)

func Example_cognito() {
	// Read the user pool's settings
	c, err := cognito.NewConfig(cognito.MapProvider{
		cognito.EnvRegion:       "us-east-1",
		cognito.EnvUserPoolId:   "us-east-1_myPoolId",
		cognito.EnvClientId:     "your_client_id",
		cognito.EnvClientSecret: "your_client_secret",
		cognito.EnvDomain:       "your-domain.auth.us-east-1.amazoncognito.com",
		cognito.EnvRedirectUri:  "http://localhost:5000/cognito/callback",
		cognito.EnvSignoutUri:   "http://localhost:5000/login",
	})
	if err != nil {
		// handle error
	}

	// Create a provider which keeps sessions in memory
	p, err := cognito.NewProvider(c, session.NewMemoryStore())
	if err != nil {
		// handle error
	}

	home := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := handler.FromContext(r.Context())
		fmt.Fprintf(w, "hello %s", s.Username)
	})

	// Compose the handlers when registering routes
	mux := http.NewServeMux()
	mux.Handle("/cognito/login", handler.Login(p))
	mux.Handle("/cognito/callback", handler.Callback(p, home))
	mux.Handle("/cognito/logout", handler.Logout(p))
	mux.Handle("/home", handler.RequireSession(p, home))

	fmt.Println(c.Issuer())
	fmt.Println(c.LoginUrl())

	// Output:
	// https://cognito-idp.us-east-1.amazonaws.com/us-east-1_myPoolId
	// https://your-domain.auth.us-east-1.amazoncognito.com/authorize?client_id=your_client_id&response_type=code&redirect_uri=http://localhost:5000/cognito/callback
}

func Example_jwt() {
	ctx := context.Background()

	// Cache the user pool's JWKS, it's fetched once
	cache, err := jwt.NewKeySetCache("https://cognito-idp.us-east-1.amazonaws.com/us-east-1_myPoolId/.well-known/jwks.json")
	if err != nil {
		log.Fatal(err)
	}
	v, err := jwt.NewVerifier()
	if err != nil {
		log.Fatal(err)
	}

	keySet, err := cache.EnsureLoaded(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// Verify an id token and bind it to the access token issued with it
	accessToken := "your_access_token"
	idToken := "your_id_token"
	claims, err := v.Verify(idToken, keySet, jwt.Expected{
		Issuer:      "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_myPoolId",
		Audience:    "your_client_id",
		AccessToken: accessToken,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(claims["cognito:username"])
}
