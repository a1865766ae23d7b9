// Package notify fans emergency broadcasts out to other services over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"
)

const SubjectPrefix = "floodsense.broadcast."

type Broadcast struct {
	AlertID  string    `json:"alertId"`
	Message  string    `json:"message"`
	District string    `json:"district,omitempty"`
	SentAt   time.Time `json:"sentAt"`
}

type Publisher interface {
	PublishBroadcast(ctx context.Context, b Broadcast) error
}

// Subject maps a district onto its NATS subject; an empty district is "all".
func Subject(district string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return unicode.ToLower(r)
		case unicode.IsSpace(r), r == '_':
			return '_'
		}
		return -1
	}, strings.TrimSpace(district))
	if token == "" {
		token = "all"
	}
	return SubjectPrefix + token
}

type NATS struct {
	conn *nats.Conn
}

func ConnectNATS(url string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("floodsense"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to nats: %w", err)
	}
	return &NATS{conn: conn}, nil
}

func (n *NATS) PublishBroadcast(ctx context.Context, b Broadcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(Subject(b.District), data); err != nil {
		return fmt.Errorf("publishing broadcast: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Nop discards broadcasts. Used when no NATS server is configured.
type Nop struct{}

func (Nop) PublishBroadcast(context.Context, Broadcast) error { return nil }
