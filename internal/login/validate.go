package login

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// validateTokens verifies the ID token's signature and claims against the
// provider and, when the token carries an access-token hash, checks the
// access token against it. Token responses without an ID token pass through
// untouched for identity services that predate OIDC.
func validateTokens(ctx context.Context, provider *oidc.Provider, claims *providerClaims, opts *Options, token *oauth2.Token) error {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil
	}

	cfg := &oidc.Config{ClientID: opts.ClientID}
	if len(claims.SigningAlgs) > 0 {
		cfg.SupportedSigningAlgs = claims.SigningAlgs
	}

	idToken, err := provider.Verifier(cfg).Verify(ctx, rawIDToken)
	if err != nil {
		return &clierrors.InvalidTokenError{Message: "ID token failed validation", Err: err}
	}

	if idToken.AccessTokenHash != "" && token.AccessToken != "" {
		if err := idToken.VerifyAccessToken(token.AccessToken); err != nil {
			return &clierrors.InvalidTokenError{Message: "Access token has an invalid hash."}
		}
	}
	return nil
}

// KeyClaims are the registered claims carried by an API key.
type KeyClaims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifyAPIKey checks an API key's signature against the identity service's
// published key set and returns its claims.
func VerifyAPIKey(ctx context.Context, apiKey string, opts Options) (*KeyClaims, error) {
	opts.applyDefaults()
	client := opts.httpClient()
	ctx = oidc.ClientContext(ctx, client)

	_, claims, err := discover(ctx, &opts)
	if err != nil {
		return nil, err
	}
	if claims.JWKSURI == "" {
		return nil, &clierrors.AuthenticationError{Message: "identity service does not publish a key set"}
	}

	jwks, err := keyfunc.Get(claims.JWKSURI, keyfunc.Options{
		Ctx:    ctx,
		Client: client,
	})
	if err != nil {
		return nil, &clierrors.AuthenticationError{
			Message: "cannot fetch the identity service key set",
			Err:     err,
		}
	}
	defer jwks.EndBackground()

	var registered jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(apiKey, &registered, jwks.Keyfunc); err != nil {
		return nil, &clierrors.InvalidTokenError{Message: "API key failed validation", Err: err}
	}

	out := &KeyClaims{Subject: registered.Subject, Issuer: registered.Issuer}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	return out, nil
}
