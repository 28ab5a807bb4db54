// Package notify delivers the "new workshops" message.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotifyFailed = errors.New("failed to send notification")

// Notifier delivers a plain text message to the operator.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// NewTitle is a workshop title seen for the first time in a run.
type NewTitle struct {
	Store string
	Title string
}

func (t NewTitle) String() string {
	return fmt.Sprintf("[%s] %s", t.Store, t.Title)
}

// Compose builds the single message sent at the end of a run, titles keep the order
// they were discovered in.
func Compose(titles []NewTitle, formUrl string) (subject string, body string) {
	subject = fmt.Sprintf("Novos workshops (%d)", len(titles))

	var sb strings.Builder
	for _, t := range titles {
		sb.WriteString(t.String())
		sb.WriteString("\n")
	}
	sb.WriteString("Check form here: ")
	sb.WriteString(formUrl)
	return subject, sb.String()
}
