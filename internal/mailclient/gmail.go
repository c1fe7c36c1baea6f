package mailclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/meko-christian/mail-triage/internal/triage"
)

const gmailUser = "me"

// Gmail system labels are addressed by their fixed ids; only user labels
// need name-to-id resolution.
var systemLabels = map[string]struct{}{
	"INBOX": {}, "SPAM": {}, "TRASH": {}, "UNREAD": {}, "STARRED": {},
	"IMPORTANT": {}, "SENT": {}, "DRAFT": {},
	"CATEGORY_PERSONAL": {}, "CATEGORY_SOCIAL": {}, "CATEGORY_PROMOTIONS": {},
	"CATEGORY_UPDATES": {}, "CATEGORY_FORUMS": {},
}

// GmailClient talks to the Gmail REST API. Moving a message is a label
// operation there: add the target label, remove INBOX.
type GmailClient struct {
	srv *gmail.Service

	// user label name (lowercased) -> label id, filled lazily
	labels map[string]string
}

// NewGmailClient runs the installed-app OAuth flow: credentials from
// gmail.credentials, cached token at gmail.token, browser code paste on
// first use.
func NewGmailClient(ctx context.Context) (*GmailClient, error) {
	credPath := viper.GetString("gmail.credentials")
	if credPath == "" {
		credPath = "credentials.json"
	}
	tokenPath := viper.GetString("gmail.token")
	if tokenPath == "" {
		tokenPath = "token.json"
	}

	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}

	httpClient, err := oauthClient(ctx, oauthConfig, tokenPath)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &GmailClient{srv: srv}, nil
}

func oauthClient(ctx context.Context, config *oauth2.Config, tokenPath string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		tok, err = tokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			slog.Warn("failed to cache oauth token", "path", tokenPath, "error", err)
		}
	}
	return config.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Fetch lists up to limit INBOX messages and returns full records for the
// ones not present in excluding.
func (c *GmailClient) Fetch(limit int, excluding map[string]struct{}) ([]triage.Message, error) {
	list, err := c.srv.Users.Messages.List(gmailUser).
		LabelIds("INBOX").
		MaxResults(int64(limit)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	msgs := make([]triage.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		if _, known := excluding[ref.Id]; known {
			continue
		}
		full, err := c.srv.Users.Messages.Get(gmailUser, ref.Id).Format("full").Do()
		if err != nil {
			slog.Error("unable to fetch message", "id", ref.Id, "error", err)
			continue
		}
		msgs = append(msgs, parseGmailMessage(full))
	}
	return msgs, nil
}

// SetReadState flips the UNREAD label, which is how Gmail models read
// state.
func (c *GmailClient) SetReadState(id string, read bool) error {
	body := &gmail.ModifyMessageRequest{}
	if read {
		body.RemoveLabelIds = []string{"UNREAD"}
	} else {
		body.AddLabelIds = []string{"UNREAD"}
	}
	if _, err := c.srv.Users.Messages.Modify(gmailUser, id, body).Do(); err != nil {
		return fmt.Errorf("unable to modify read state of %s: %w", id, err)
	}
	return nil
}

// Move applies the target label and removes INBOX. System label names are
// used verbatim; user labels are resolved case-insensitively and created
// when missing.
func (c *GmailClient) Move(id, mailbox string) error {
	labelID, err := c.labelID(mailbox)
	if err != nil {
		return err
	}
	body := &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"INBOX"},
	}
	if _, err := c.srv.Users.Messages.Modify(gmailUser, id, body).Do(); err != nil {
		return fmt.Errorf("unable to move %s to %s: %w", id, mailbox, err)
	}
	return nil
}

func (c *GmailClient) Close() error { return nil }

func (c *GmailClient) labelID(name string) (string, error) {
	if _, ok := systemLabels[strings.ToUpper(name)]; ok {
		return strings.ToUpper(name), nil
	}

	if c.labels == nil {
		list, err := c.srv.Users.Labels.List(gmailUser).Do()
		if err != nil {
			return "", fmt.Errorf("unable to list labels: %w", err)
		}
		c.labels = make(map[string]string, len(list.Labels))
		for _, l := range list.Labels {
			c.labels[strings.ToLower(l.Name)] = l.Id
		}
	}

	if id, ok := c.labels[strings.ToLower(name)]; ok {
		return id, nil
	}

	created, err := c.srv.Users.Labels.Create(gmailUser, &gmail.Label{Name: name}).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create label %s: %w", name, err)
	}
	slog.Info("created label", "name", name, "id", created.Id)
	c.labels[strings.ToLower(name)] = created.Id
	return created.Id, nil
}

func parseGmailMessage(msg *gmail.Message) triage.Message {
	out := triage.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		IsRead:   true,
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			out.IsRead = false
			break
		}
	}

	if msg.Payload == nil {
		return out
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			out.From = header.Value
		case "Subject":
			out.Subject = header.Value
		case "Date":
			out.ReceivedAt = parseDate(header.Value)
		}
	}
	// Prefer the Date header; fall back to Gmail's internal receive time.
	if out.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		out.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	out.Body = plainTextBody(msg.Payload)
	return out
}

// parseDate handles the RFC 5322 Date header plus the trailing "(MST)"
// comment variant some senders still emit.
func parseDate(value string) time.Time {
	if t, err := mail.ParseDate(value); err == nil {
		return t
	}
	if t, err := time.Parse("Mon, 2 Jan 2006 15:04:05 -0700 (MST)", value); err == nil {
		return t
	}
	slog.Warn("could not parse date header", "value", value)
	return time.Time{}
}

// plainTextBody walks the payload tree for the first text/plain part.
func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
		slog.Warn("failed to decode text/plain part", "error", err)
	}
	for _, part := range payload.Parts {
		mimeType := strings.ToLower(part.MimeType)
		if strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
