// Package crm reads the member export from Zoho Creator.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"membership_sync/internal/domain/membership"
	"membership_sync/internal/domain/syncerr"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("membership_sync/crm")

const (
	successCode = 3000
	statusHint  = "See https://www.zoho.com/creator/help/api/v2/status-codes.html"

	// Members matched to a known person, or waiting on a manual confirmation.
	memberCriteria = `Email != "" && Priority == "Successfully Matched" || Priority == "Requires Confirmation"`

	cursorHeader    = "record_cursor"
	defaultPageSize = 1000
	defaultMaxPages = 500
)

// Options configures the CRM client.
type Options struct {
	OAuthHost    string
	APIHost      string
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountName  string
	ReportName   string
	PageSize     int
	MaxPages     int
	RateLimit    float64 // pages per second; zero disables pacing
	Timeout      time.Duration
}

// Client fetches the deduplicated set of member addresses from one report.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *logrus.Entry
}

func NewClient(opts Options, logger *logrus.Entry) *Client {
	opts.OAuthHost = strings.TrimRight(opts.OAuthHost, "/")
	opts.APIHost = strings.TrimRight(opts.APIHost, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")

	return &Client{http: client, opts: opts, logger: logger.WithField("component", "crm")}
}

// FetchMemberEmails drains every page of the member report and deduplicates the addresses.
func (c *Client) FetchMemberEmails(ctx context.Context) (membership.Set, error) {
	ctx, span := tracer.Start(ctx, "crm:FetchMemberEmails",
		trace.WithAttributes(attribute.String("crm.report", c.opts.ReportName)),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	tokens := oauth2.ReuseTokenSource(nil, &refreshTokenSource{ctx: ctx, client: c})

	var limiter *rate.Limiter
	if c.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.opts.RateLimit), 1)
	}

	emails := membership.NewSet()
	cursor := ""
	for page := 1; ; page++ {
		if page > c.opts.MaxPages {
			span.SetStatus(codes.Error, "too many pages")
			return nil, fmt.Errorf("CRM report still paginating after %d pages", c.opts.MaxPages)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for CRM rate limiter: %w", err)
			}
		}

		token, err := tokens.Token()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to obtain access token")
			return nil, err
		}

		records, next, err := c.fetchPage(ctx, token.AccessToken, cursor)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch page")
			return nil, err
		}
		for _, r := range records {
			emails.Add(membership.NormalizeEmail(r))
		}
		c.logger.WithFields(logrus.Fields{"page": page, "records": len(records)}).Debug("Fetched CRM page")

		if next == "" {
			break
		}
		cursor = next
	}

	span.SetAttributes(attribute.Int("members", emails.Len()))
	return emails, nil
}

func (c *Client) fetchPage(ctx context.Context, accessToken, cursor string) ([]string, string, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Zoho-oauthtoken "+accessToken).
		SetQueryParams(map[string]string{
			"field_config": "custom",
			"fields":       "Email",
			"criteria":     memberCriteria,
			"max_records":  strconv.Itoa(c.opts.PageSize),
		})
	if cursor != "" {
		req.SetHeader(cursorHeader, cursor)
	}

	url := fmt.Sprintf("%s/creator/v2.1/data/%s/report/%s", c.opts.APIHost, c.opts.AccountName, c.opts.ReportName)
	res, err := req.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("CRM records request failed: %w", err)
	}
	body := res.Body()

	if err := validate("CRM records response", statusSchema, body); err != nil {
		return nil, "", err
	}
	var status struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, "", &syncerr.SchemaValidationError{Subject: "CRM records response", Err: err}
	}
	if status.Code != successCode {
		return nil, "", &syncerr.APIResponseError{Code: status.Code, Hint: statusHint}
	}

	if err := validate("CRM records response", recordsSchema, body); err != nil {
		return nil, "", err
	}
	var payload struct {
		Data []struct {
			Email string `json:"Email"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", &syncerr.SchemaValidationError{Subject: "CRM records response", Err: err}
	}

	emails := make([]string, len(payload.Data))
	for i, d := range payload.Data {
		emails[i] = d.Email
	}
	// Only present when there are more records than fit in one page.
	return emails, res.Header().Get(cursorHeader), nil
}
