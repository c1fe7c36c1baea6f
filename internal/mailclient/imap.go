package mailclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	idle "github.com/emersion/go-imap-idle"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/spf13/viper"

	"github.com/meko-christian/mail-triage/internal/triage"
)

// IMAPClient is the generic-provider backend. Message ids are IMAP UIDs
// rendered as decimal strings; they are stable within the selected mailbox,
// which is what the local store keys on.
type IMAPClient struct {
	c       *client.Client
	mailbox string
}

// NewIMAPClient connects to the configured IMAP server, logs in, and
// selects the working mailbox (INBOX unless imap.mailbox says otherwise).
func NewIMAPClient() (*IMAPClient, error) {
	server := viper.GetString("imap.server")
	port := viper.GetInt("imap.port")
	username := viper.GetString("imap.username")
	password := viper.GetString("imap.password")

	mailbox := viper.GetString("imap.mailbox")
	if mailbox == "" {
		mailbox = "INBOX"
	}

	address := fmt.Sprintf("%s:%d", server, port)

	tlsConfig := &tls.Config{
		ServerName: server, // ensures correct certificate validation
	}

	c, err := client.DialTLS(address, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(username, password); err != nil {
		_ = c.Logout() // clean up if login fails
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if _, err := c.Select(mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	return &IMAPClient{c: c, mailbox: mailbox}, nil
}

func (c *IMAPClient) Close() error {
	return c.c.Logout()
}

// Fetch returns up to limit of the most recent messages in the selected
// mailbox, skipping UIDs present in excluding.
func (c *IMAPClient) Fetch(limit int, excluding map[string]struct{}) ([]triage.Message, error) {
	// Re-select to refresh the message count.
	status, err := c.c.Select(c.mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", c.mailbox, err)
	}
	if status.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if int(status.Messages) > limit {
		from = status.Messages - uint32(limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, status.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, limit)
	if err := c.c.Fetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var results []triage.Message
	for msg := range messages {
		id := strconv.FormatUint(uint64(msg.Uid), 10)
		if _, known := excluding[id]; known {
			continue
		}
		results = append(results, parseIMAPMessage(msg, id, section))
	}
	return results, nil
}

// SetReadState adds or removes the \Seen flag on the message.
func (c *IMAPClient) SetReadState(id string, read bool) error {
	seqset, err := uidSet(id)
	if err != nil {
		return err
	}

	var op imap.FlagsOp = imap.AddFlags
	if !read {
		op = imap.RemoveFlags
	}
	item := imap.FormatFlagsOp(op, true) // true = silent update
	flags := []any{imap.SeenFlag}

	if err := c.c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to update \\Seen on %s: %w", id, err)
	}
	return nil
}

// Move copies the message into the target mailbox (creating it on first
// use) and expunges the original. COPY + \Deleted + EXPUNGE works without
// the MOVE extension.
func (c *IMAPClient) Move(id, mailbox string) error {
	seqset, err := uidSet(id)
	if err != nil {
		return err
	}

	// Create is a no-op failure when the mailbox already exists.
	if err := c.c.Create(mailbox); err != nil {
		slog.Debug("mailbox create skipped", "mailbox", mailbox, "error", err)
	}

	if err := c.c.UidCopy(seqset, mailbox); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", id, mailbox, err)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.c.UidStore(seqset, item, []any{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to flag %s deleted: %w", id, err)
	}
	if err := c.c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// Idle blocks on the server's IDLE notifications (with a polling fallback
// for servers without the extension) and invokes onUpdate whenever the
// mailbox changes. Returns when ctx is cancelled.
func (c *IMAPClient) Idle(ctx context.Context, onUpdate func()) error {
	updates := make(chan client.Update, 16)
	c.c.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idle.NewClient(c.c).IdleWithFallback(stop, 0)
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return nil
		case err := <-done:
			return err
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				slog.Info("mailbox update received")
				onUpdate()
			}
		}
	}
}

func uidSet(id string) (*imap.SeqSet, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	return seqset, nil
}

func parseIMAPMessage(msg *imap.Message, id string, section *imap.BodySectionName) triage.Message {
	out := triage.Message{ID: id}

	for _, flag := range msg.Flags {
		if flag == imap.SeenFlag {
			out.IsRead = true
			break
		}
	}

	if env := msg.Envelope; env != nil {
		out.ThreadID = env.MessageId
		out.Subject = env.Subject
		out.ReceivedAt = env.Date
		if len(env.From) > 0 && env.From[0] != nil {
			out.From = env.From[0].Address()
		}
	}

	if body := msg.GetBody(section); body != nil {
		entity, err := message.Read(body)
		if err != nil {
			slog.Warn("failed to parse MIME message", "id", id, "error", err)
		} else {
			out.Body = textBody(entity)
		}
	}
	return out
}

// textBody walks the MIME structure for the first text/plain part.
func textBody(entity *message.Entity) string {
	mediaType, _, _ := entity.Header.ContentType()

	if !strings.HasPrefix(mediaType, "multipart/") {
		if mediaType != "text/plain" && mediaType != "" {
			return ""
		}
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			slog.Warn("failed to read body", "error", err)
			return ""
		}
		return string(body)
	}

	mr := entity.MultipartReader()
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break // skip faulty parts
		}

		partMediaType, _, _ := part.Header.ContentType()
		if partMediaType == "text/plain" {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			return string(body)
		}
		if strings.HasPrefix(partMediaType, "multipart/") {
			if body := textBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
