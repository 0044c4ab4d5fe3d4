package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stampworks/sigforge/internal/pkg/httpretry"
	"github.com/stampworks/sigforge/internal/pkg/logger"
)

// DefaultGraphBaseURL is the production Microsoft Graph endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// MicrosoftWriter pushes signatures into Exchange Online mailboxes via the
// Graph API using an application-permission client. The injected http.Client
// must carry the tenant's client-credentials token (oauth2/clientcredentials).
type MicrosoftWriter struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewMicrosoftWriter creates a Graph signature writer.
func NewMicrosoftWriter(baseURL string, httpClient httpretry.HTTPDoer) *MicrosoftWriter {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if httpClient == nil {
		httpClient = httpretry.NewRetryClient(nil, 0)
	}
	return &MicrosoftWriter{baseURL: baseURL, httpClient: httpClient}
}

// WriteSignature updates the mailbox's Outlook signature settings.
func (w *MicrosoftWriter) WriteSignature(ctx context.Context, mailbox, html string) error {
	payload := map[string]interface{}{
		"signatureHtml": html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode signature payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/mailboxSettings/signature", w.baseURL, url.PathEscape(mailbox))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &WriteError{Provider: "graph", Mailbox: mailbox, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// Mailbox no longer exists (deprovisioned between directory sync
		// and deployment). Treat as a per-target failure like any other.
		return &WriteError{Provider: "graph", Mailbox: mailbox, Status: resp.StatusCode}
	default:
		sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("graph rejected signature write",
			"mailbox", mailbox, "status", resp.StatusCode, "body", string(sample))
		return &WriteError{Provider: "graph", Mailbox: mailbox, Status: resp.StatusCode}
	}
}
