package service

import (
	"fmt"
	"strings"
	"time"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// Field length limits. Address and subject limits follow RFC 5321/5322
// line and path lengths.
const (
	MaxIDLength      = 128
	MaxAddressLength = 320
	MaxSubjectLength = 998
	MaxBodyLength    = 1 << 20
)

// NewMessage is the caller-supplied content of a message. Id and timestamp
// are assigned by the service.
type NewMessage struct {
	Sender     string   `json:"sender" yaml:"sender"`
	Recipients []string `json:"recipients" yaml:"recipients"`
	Subject    string   `json:"subject" yaml:"subject"`
	Body       string   `json:"body" yaml:"body"`
}

// Validate rejects messages that may not be indexed.
func (m NewMessage) Validate() error {
	if err := requireText("sender", m.Sender, MaxAddressLength); err != nil {
		return err
	}
	if len(cleanRecipients(m.Recipients)) == 0 {
		return msgerrors.ValidationError("at least one recipient is required").
			WithDetail("field", "recipients")
	}
	for _, r := range m.Recipients {
		if len(r) > MaxAddressLength {
			return msgerrors.ValidationError(
				fmt.Sprintf("recipient exceeds %d characters", MaxAddressLength)).
				WithDetail("field", "recipients")
		}
	}
	if err := requireText("subject", m.Subject, MaxSubjectLength); err != nil {
		return err
	}
	return requireText("body", m.Body, MaxBodyLength)
}

func (m NewMessage) toMessage(id string, ts time.Time) store.Message {
	return store.Message{
		ID:         id,
		Sender:     strings.TrimSpace(m.Sender),
		Recipients: cleanRecipients(m.Recipients),
		Subject:    m.Subject,
		Body:       m.Body,
		Timestamp:  ts,
	}
}

// ValidateID rejects empty or oversized message ids.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return msgerrors.ValidationError("message id cannot be empty").WithDetail("field", "id")
	}
	if len(id) > MaxIDLength {
		return msgerrors.ValidationError(
			fmt.Sprintf("message id exceeds %d characters", MaxIDLength)).WithDetail("field", "id")
	}
	return nil
}

func requireText(field, value string, limit int) error {
	if strings.TrimSpace(value) == "" {
		return msgerrors.ValidationError(field+" is required").WithDetail("field", field)
	}
	if len(value) > limit {
		return msgerrors.ValidationError(
			fmt.Sprintf("%s exceeds %d characters", field, limit)).WithDetail("field", field)
	}
	return nil
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
