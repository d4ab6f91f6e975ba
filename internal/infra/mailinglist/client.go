// Package mailinglist talks to a Sympa list server that has no usable API.
//
// The host has neither the SOAP nor the HTTP API enabled, so this package
// impersonates a browser: it submits the login form, keeps the session cookie
// by hand and classifies responses by content type, reading failures out of the
// HTML the server renders for humans.
package mailinglist

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("membership_sync/mailinglist")

const (
	defaultCookiePrefix = "sympa_session"
	defaultTimeout      = 30 * time.Second
	userAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Options configures both the session client and the list fetcher.
type Options struct {
	BaseURL      string // e.g. https://lists.riseup.net
	ListName     string
	CookiePrefix string
	Timeout      time.Duration
	// IsError decides whether a login response status is a failure. Defaults to status != 302.
	IsError func(status int) bool
	// Transport overrides the HTTP transport; tests leave it nil.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.CookiePrefix == "" {
		o.CookiePrefix = defaultCookiePrefix
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.IsError == nil {
		o.IsError = func(status int) bool { return status != http.StatusFound }
	}
	return o
}

// newHTTPClient builds a resty client without a cookie jar: the session cookie
// is always sent explicitly so a stale jar entry can never leak into a request.
func newHTTPClient(opts Options, followRedirects bool) (*resty.Client, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	client.SetBaseURL(opts.BaseURL)
	client.SetCookieJar(nil)
	client.SetHeader("User-Agent", userAgent)
	client.SetTimeout(opts.Timeout)

	if followRedirects {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	} else {
		client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}
	return client, nil
}
