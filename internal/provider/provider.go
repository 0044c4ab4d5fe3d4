// Package provider bridges rendered signatures into mailboxes at the mail
// provider. Each implementation wraps one provider's settings API behind the
// same narrow write operation.
package provider

import (
	"context"
	"fmt"
)

// WriteError wraps a provider-side failure with the HTTP status it returned,
// so callers can tell a rejected mailbox from an outage in history rows.
type WriteError struct {
	Provider string
	Mailbox  string
	Status   int
	Err      error
}

func (e *WriteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: write signature for %s: HTTP %d", e.Provider, e.Mailbox, e.Status)
	}
	return fmt.Sprintf("%s: write signature for %s: %v", e.Provider, e.Mailbox, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Func adapts a function to the deployment service's SignatureWriter
// contract. Used in tests and for wiring custom providers.
type Func func(ctx context.Context, mailbox, html string) error

// WriteSignature calls f.
func (f Func) WriteSignature(ctx context.Context, mailbox, html string) error {
	return f(ctx, mailbox, html)
}
