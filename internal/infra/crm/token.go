package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"membership_sync/internal/domain/syncerr"

	"golang.org/x/oauth2"
)

// refreshTokenSource trades the long-lived refresh token for an access token.
// Zoho takes the grant as query parameters, not a form body.
type refreshTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *refreshTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	res, err := c.http.R().
		SetContext(s.ctx).
		SetQueryParams(map[string]string{
			"client_id":     c.opts.ClientID,
			"client_secret": c.opts.ClientSecret,
			"grant_type":    "refresh_token",
			"refresh_token": c.opts.RefreshToken,
		}).
		Post(c.opts.OAuthHost + "/oauth/v2/token")
	if err != nil {
		return nil, fmt.Errorf("CRM token request failed: %w", err)
	}

	if err := validate("CRM token response", tokenSchema, res.Body()); err != nil {
		return nil, err
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, &syncerr.SchemaValidationError{Subject: "CRM token response", Err: err}
	}

	token := &oauth2.Token{AccessToken: payload.AccessToken, TokenType: "Zoho-oauthtoken"}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}
