package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	oauth2 "golang.org/x/oauth2"

	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// AuthHandler validates an auth context (a bearer token lifted from the
// transport's Authorization header) and returns the scopes it grants. A
// Server with no AuthHandler performs no authentication at all, matching
// the teacher's stdio server, which never saw a token to check.
type AuthHandler interface {
	Authorize(ctx context.Context, token string) ([]string, error)
}

// TokenIntrospectionHandler implements AuthHandler via RFC 7662 token
// introspection against an external authorization server. It never
// verifies a signature or talks to an identity provider directly: it asks
// the same server mcpclient's OAuthMetadata.Register pointed the client at.
type TokenIntrospectionHandler struct {
	IntrospectionURL string
	ClientID         string
	ClientSecret     string
	HTTPClient       *http.Client
}

var _ AuthHandler = (*TokenIntrospectionHandler)(nil)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Authorize posts token to the introspection endpoint and returns the
// space-delimited scope claim, parsed the way golang.org/x/oauth2 extends
// a Token with provider-specific fields.
func (h *TokenIntrospectionHandler) Authorize(ctx context.Context, token string) ([]string, error) {
	if token == "" {
		return nil, mcptype.ErrAuthenticationRequired("missing bearer token")
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.IntrospectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if h.ClientID != "" {
		req.SetBasicAuth(h.ClientID, h.ClientSecret)
	}

	httpClient := h.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, mcptype.ErrAuthenticationRequired(err.Error())
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, mcptype.ErrAuthenticationRequired("invalid introspection response")
	}
	if active, _ := raw["active"].(bool); !active {
		return nil, mcptype.ErrAuthenticationRequired("token is not active")
	}

	scopeStr, _ := (&oauth2.Token{}).WithExtra(raw).Extra("scope").(string)
	if scopeStr == "" {
		return nil, nil
	}
	return strings.Fields(scopeStr), nil
}

///////////////////////////////////////////////////////////////////////////////
// SERVER INTEGRATION

// Authorize delegates to the Server's configured AuthHandler, if any. With
// no handler set it grants unrestricted access, so an unauthenticated
// stdio deployment keeps working unchanged.
func (server *Server) Authorize(ctx context.Context, token string) ([]string, error) {
	server.mu.RLock()
	handler := server.auth
	server.mu.RUnlock()
	if handler == nil {
		return nil, nil
	}
	return handler.Authorize(ctx, token)
}
