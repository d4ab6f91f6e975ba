package mailinglist

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"membership_sync/internal/domain/membership"
	"membership_sync/internal/domain/syncerr"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SessionClient performs the Sympa login handshake.
type SessionClient struct {
	http         *resty.Client
	baseURL      string
	cookiePrefix string
	isError      func(status int) bool
}

func NewSessionClient(opts Options) (*SessionClient, error) {
	opts = opts.withDefaults()
	// The authenticated cookie is only on the 302 itself; the redirect target
	// hands out a fresh logged-out session.
	client, err := newHTTPClient(opts, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create session client: %w", err)
	}
	return &SessionClient{
		http:         client,
		baseURL:      opts.BaseURL,
		cookiePrefix: opts.CookiePrefix,
		isError:      opts.IsError,
	}, nil
}

// loginForm encodes the login form with the field order the web UI uses.
func loginForm(username, password string) string {
	fields := [][2]string{
		{"previous_action", ""},
		{"previous_list", ""},
		{"referer", ""},
		{"list", ""},
		{"action", "login"},
		{"email", username},
		{"passwd", password},
		{"action_login", "Login"},
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = url.QueryEscape(f[0]) + "=" + url.QueryEscape(f[1])
	}
	return strings.Join(parts, "&")
}

// Authenticate logs in and returns the session cookie as a name=value pair.
//
// A session cookie is issued even when the credentials are wrong, so success
// here only means the host started a session. Bad credentials surface on the
// next authenticated request.
func (c *SessionClient) Authenticate(ctx context.Context, username, password string) (membership.SessionToken, error) {
	ctx, span := tracer.Start(ctx, "session:Authenticate")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Referer", c.baseURL+"/www").
		SetHeader("Origin", c.baseURL).
		SetBody(loginForm(username, password)).
		Post("/www")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return "", fmt.Errorf("login request failed: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))

	if c.isError(res.StatusCode()) {
		span.SetStatus(codes.Error, "unexpected login status")
		return "", &syncerr.AuthenticationError{
			Reason: fmt.Sprintf("unexpected status %d in response to login request", res.StatusCode()),
		}
	}

	token, ok := sessionCookie(res.Header().Values("Set-Cookie"), c.cookiePrefix)
	if !ok {
		span.SetStatus(codes.Error, "no session cookie")
		return "", &syncerr.AuthenticationError{Reason: "no session cookie"}
	}
	return token, nil
}

// sessionCookie picks the first Set-Cookie value whose name starts with prefix
// and strips its attributes (path, domain, expiry).
func sessionCookie(setCookies []string, prefix string) (membership.SessionToken, bool) {
	for _, c := range setCookies {
		c = strings.TrimSpace(c)
		if !strings.HasPrefix(c, prefix) {
			continue
		}
		pair, _, _ := strings.Cut(c, ";")
		return membership.SessionToken(strings.TrimSpace(pair)), true
	}
	return "", false
}
