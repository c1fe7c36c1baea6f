// Package mailclient talks to the mail provider. Two backends are
// supported: the Gmail REST API and plain IMAP. Both expose the same small
// surface the triage engine and the ingest command consume.
package mailclient

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/meko-christian/mail-triage/internal/triage"
)

// Client is the provider-facing collaborator. Fetch skips ids in
// excluding so repeated ingestion does not refetch stored messages.
type Client interface {
	Fetch(limit int, excluding map[string]struct{}) ([]triage.Message, error)
	SetReadState(id string, read bool) error
	Move(id, mailbox string) error
	Close() error
}

// New builds the backend selected by the "mail.backend" config key.
// Gmail is the default.
func New(ctx context.Context) (Client, error) {
	backend := viper.GetString("mail.backend")
	switch backend {
	case "", "gmail":
		return NewGmailClient(ctx)
	case "imap":
		return NewIMAPClient()
	}
	return nil, fmt.Errorf("unknown mail backend %q (expected gmail or imap)", backend)
}
