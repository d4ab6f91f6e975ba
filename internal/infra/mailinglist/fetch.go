package mailinglist

import (
	"context"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"membership_sync/internal/domain/membership"
	"membership_sync/internal/domain/syncerr"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const noErrorMessage = "(No error message found in response HTML)"

// looksLikeEmail is a loose check that the body is a list of addresses at all.
var looksLikeEmail = regexp.MustCompile(`(?m)^\S+@\S+\.\S+\r?$`)

// ListFetcher downloads the subscriber dump of one list.
type ListFetcher struct {
	http     *resty.Client
	listName string
}

func NewListFetcher(opts Options) (*ListFetcher, error) {
	opts = opts.withDefaults()
	if opts.ListName == "" {
		return nil, fmt.Errorf("list name is required")
	}
	client, err := newHTTPClient(opts, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create list fetcher: %w", err)
	}
	return &ListFetcher{http: client, listName: opts.ListName}, nil
}

// FetchSubscribers returns the current subscribers of the list.
// The host has no error channel besides the page it renders, so the response
// content type decides between a member dump and an error page.
func (f *ListFetcher) FetchSubscribers(ctx context.Context, session membership.SessionToken) (membership.Set, error) {
	ctx, span := tracer.Start(ctx, "list:FetchSubscribers")
	defer span.End()

	res, err := f.http.R().
		SetContext(ctx).
		SetHeader("Cookie", session.String()).
		SetPathParam("list", f.listName).
		Get("/www/dump/{list}/light")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch member dump")
		return nil, fmt.Errorf("member dump request failed: %w", err)
	}

	contentType := res.Header().Get("Content-Type")
	span.SetAttributes(
		attribute.Int("http.status_code", res.StatusCode()),
		attribute.String("http.content_type", contentType),
	)

	// Error responses never count as a dump, whatever their body looks like.
	if res.IsError() {
		msg := fmt.Sprintf("unexpected status %d fetching member dump", res.StatusCode())
		if strings.HasPrefix(contentType, "text/html") {
			msg += ": " + errorMessageFromHTML(string(res.Body()))
		}
		span.SetStatus(codes.Error, "member dump request rejected")
		return nil, &syncerr.ListFetchError{Message: msg}
	}

	members, err := classifyDump(contentType, string(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "member dump rejected")
		return nil, err
	}
	span.SetAttributes(attribute.Int("members", members.Len()))
	return members, nil
}

// classifyDump turns a dump response into a member set or a ListFetchError.
func classifyDump(contentType, body string) (membership.Set, error) {
	switch {
	case isPlainText(contentType):
		if !looksLikeEmail.MatchString(body) {
			return nil, &syncerr.ListFetchError{
				Message: "Response had expected Content-Type, but didn't look like a list of emails!",
			}
		}
		return membership.NewSet(strings.Split(body, "\n")...), nil

	case strings.HasPrefix(contentType, "text/html"):
		return nil, &syncerr.ListFetchError{Message: errorMessageFromHTML(body)}

	default:
		return nil, &syncerr.ListFetchError{
			Message: fmt.Sprintf("Unknown response type: %s", contentType),
		}
	}
}

func isPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/plain"
}

// errorMessageFromHTML reads the text of the #ErrorMsg element Sympa renders on failures.
func errorMessageFromHTML(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return noErrorMessage
	}
	msg := strings.TrimSpace(doc.Find("#ErrorMsg").Text())
	if msg == "" {
		return noErrorMessage
	}
	return msg
}
