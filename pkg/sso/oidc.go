// Package sso authenticates users against an OpenID Connect provider and
// binds the verified identity onto the local session.
package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/folio-cms/folio/pkg/config"
)

// Identity is the subset of OIDC claims this system consumes. Groups map
// onto the local group attribute when a matching group slug exists.
type Identity struct {
	Subject  string
	Email    string
	Username string
	Groups   []string
}

// Provider wraps OIDC discovery, the code exchange and token verification.
type Provider struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	defaultRole  string
}

// NewProvider discovers the issuer and prepares the OAuth2 flow.
func NewProvider(ctx context.Context, cfg config.SSOConfig) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &Provider{
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		defaultRole:  cfg.DefaultRole,
	}, nil
}

// DefaultRole is the role stamped on sessions authenticated through SSO.
func (p *Provider) DefaultRole() string {
	return p.defaultRole
}

// AuthCodeURL builds the authorization redirect for the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified identity.
func (p *Provider) Exchange(ctx context.Context, code string) (*Identity, error) {
	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email             string   `json:"email"`
		PreferredUsername string   `json:"preferred_username"`
		Groups            []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	identity := &Identity{
		Subject:  idToken.Subject,
		Email:    claims.Email,
		Username: claims.PreferredUsername,
		Groups:   claims.Groups,
	}
	if identity.Username == "" {
		identity.Username = identity.Email
	}
	if identity.Username == "" {
		return nil, fmt.Errorf("token carries neither username nor email")
	}
	return identity, nil
}
