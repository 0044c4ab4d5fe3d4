package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/stampworks/sigforge/internal/pkg/httpretry"
	"github.com/stampworks/sigforge/internal/pkg/logger"
)

// DefaultGmailBaseURL is the production Gmail API endpoint.
const DefaultGmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GoogleWriter pushes signatures into Gmail via the sendAs settings API,
// impersonating each mailbox through a domain-wide-delegation token source.
type GoogleWriter struct {
	baseURL     string
	tokenSource func(mailbox string) oauth2.TokenSource
	httpClient  httpretry.HTTPDoer
}

// NewGoogleWriter creates a Gmail signature writer. tokenSource must yield a
// token impersonating the given mailbox (service account with domain-wide
// delegation). A nil httpClient gets a retrying default.
func NewGoogleWriter(baseURL string, tokenSource func(mailbox string) oauth2.TokenSource, httpClient httpretry.HTTPDoer) *GoogleWriter {
	if baseURL == "" {
		baseURL = DefaultGmailBaseURL
	}
	if httpClient == nil {
		httpClient = httpretry.NewRetryClient(nil, 0)
	}
	return &GoogleWriter{baseURL: baseURL, tokenSource: tokenSource, httpClient: httpClient}
}

// WriteSignature updates the mailbox's primary sendAs signature.
func (w *GoogleWriter) WriteSignature(ctx context.Context, mailbox, html string) error {
	body, err := json.Marshal(map[string]string{"signature": html})
	if err != nil {
		return fmt.Errorf("encode signature payload: %w", err)
	}

	// The primary alias has the same id as the mailbox address.
	endpoint := fmt.Sprintf("%s/users/%s/settings/sendAs/%s",
		w.baseURL, url.PathEscape(mailbox), url.PathEscape(mailbox))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := w.tokenSource(mailbox).Token()
	if err != nil {
		return &WriteError{Provider: "gmail", Mailbox: mailbox, Err: fmt.Errorf("token: %w", err)}
	}
	token.SetAuthHeader(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &WriteError{Provider: "gmail", Mailbox: mailbox, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Keep a short sample of the error body for diagnostics.
		sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("gmail rejected signature write",
			"mailbox", mailbox, "status", resp.StatusCode, "body", string(sample))
		return &WriteError{Provider: "gmail", Mailbox: mailbox, Status: resp.StatusCode}
	}
	return nil
}
