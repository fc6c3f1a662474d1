// Package mailbox imports messages from mbox files.
//
// Each entry of the mbox is parsed as an RFC 5322 message. The Message-Id
// header becomes the message id, From the sender, To and Cc the recipients,
// and the first text part the body. Entries that cannot be turned into a
// message (unparseable, no recipients, no text) are skipped and counted.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// MaxIDLength bounds ids taken from Message-Id headers. Longer ids are
// replaced by a generated one.
const MaxIDLength = 128

// Skip reasons reported in the import log.
var (
	ErrNoRecipients = errors.New("message has no recipients")
	ErrNoSender     = errors.New("message has no sender")
	ErrNoBody       = errors.New("message has no text body")
)

// Options tune an import.
type Options struct {
	// Now stamps messages that carry no usable Date header.
	Now func() time.Time
	// NewID names messages without a usable Message-Id.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Result is the outcome of an import.
type Result struct {
	Messages []store.Message
	// Entries is the number of mbox entries seen.
	Entries int
	Skipped int
}

// ReadFile imports every message in the mbox file at path.
func ReadFile(ctx context.Context, path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, msgerrors.MailboxReadError("cannot open mbox file", err).
			WithDetail("path", path)
	}
	defer f.Close()

	res, err := Read(ctx, f, opts)
	if err != nil {
		var me *msgerrors.MsgError
		if errors.As(err, &me) {
			me.WithDetail("path", path)
		}
		return res, err
	}

	slog.Info("mbox_imported",
		slog.String("path", path),
		slog.Int("entries", res.Entries),
		slog.Int("messages", len(res.Messages)),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// Read imports every message from an mbox stream. It stops early when ctx
// is cancelled. A malformed mbox framing is an error; a malformed entry is
// skipped.
func Read(ctx context.Context, r io.Reader, opts Options) (Result, error) {
	opts = opts.withDefaults()
	reader := mboxlib.NewReader(r)

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		entry, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, msgerrors.MailboxReadError("malformed mbox", err).
				WithDetail("entry", fmt.Sprint(res.Entries))
		}
		res.Entries++

		msg, err := Parse(entry, opts)
		if err != nil {
			slog.Warn("mbox_message_skipped",
				slog.Int("entry", res.Entries),
				slog.String("error", err.Error()))
			res.Skipped++
			continue
		}
		res.Messages = append(res.Messages, msg)
	}
}

// Parse converts one RFC 5322 message into a store message.
func Parse(r io.Reader, opts Options) (store.Message, error) {
	opts = opts.withDefaults()

	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return store.Message{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := store.Message{
		ID:        messageID(h, opts.NewID),
		Timestamp: messageDate(h, opts.Now),
	}

	from, _ := h.AddressList("From")
	if len(from) > 0 {
		msg.Sender = formatAddress(from[0])
	}
	if msg.Sender == "" {
		msg.Sender = strings.TrimSpace(h.Get("From"))
	}
	if msg.Sender == "" {
		return store.Message{}, ErrNoSender
	}

	msg.Recipients = recipients(h)
	if len(msg.Recipients) == 0 {
		return store.Message{}, fmt.Errorf("%w (id %s)", ErrNoRecipients, msg.ID)
	}

	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	msg.Subject = strings.TrimSpace(subject)

	body, err := textBody(mr)
	if err != nil {
		return store.Message{}, err
	}
	msg.Body = body
	return msg, nil
}

func messageID(h mail.Header, newID func() string) string {
	id, err := h.MessageID()
	if err != nil || id == "" {
		id = strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	}
	if id == "" || len(id) > MaxIDLength || strings.ContainsAny(id, " \t\r\n") {
		return newID()
	}
	return id
}

func messageDate(h mail.Header, now func() time.Time) time.Time {
	t, err := h.Date()
	if err != nil || t.IsZero() {
		return now().UTC()
	}
	return t.UTC()
}

// recipients collects To and Cc in header order without duplicates.
func recipients(h mail.Header) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range []string{"To", "Cc"} {
		addrs, err := h.AddressList(key)
		if err != nil {
			// Fall back to the raw comma-separated value.
			for _, raw := range strings.Split(h.Get(key), ",") {
				if raw = strings.TrimSpace(raw); raw != "" && !seen[raw] {
					seen[raw] = true
					out = append(out, raw)
				}
			}
			continue
		}
		for _, a := range addrs {
			s := formatAddress(a)
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// formatAddress renders "Name <addr>" when a display name is present so
// both the name and the address are searchable.
func formatAddress(a *mail.Address) string {
	if a == nil {
		return ""
	}
	if a.Name == "" {
		return a.Address
	}
	if a.Address == "" {
		return a.Name
	}
	return a.Name + " <" + a.Address + ">"
}

// textBody returns the first inline text/plain part, or the first inline
// text part of any kind when there is no plain one.
func textBody(mr *mail.Reader) (string, error) {
	var fallback string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := h.ContentType()
		if err != nil {
			ct = "text/plain"
		}
		if !strings.HasPrefix(ct, "text/") {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		if ct == "text/plain" {
			return text, nil
		}
		if fallback == "" {
			fallback = text
		}
	}
	if fallback == "" {
		return "", ErrNoBody
	}
	return fallback, nil
}
