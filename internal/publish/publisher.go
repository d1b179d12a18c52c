// Package publish forwards completed cycles to NATS subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "neuroadapt.cycles"

// Snapshot is the JSON message published per cycle.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	VersionID string              `json:"version_id"`
	ParentID  string              `json:"parent_id,omitempty"`
	Cycle     int                 `json:"cycle"`
	Trigger   string              `json:"trigger"`
	Decision  string              `json:"decision"`
	Reason    string              `json:"reason,omitempty"`
	Traits    state.Traits        `json:"traits"`
	Record    logging.CycleRecord `json:"record"`
	At        time.Time           `json:"at"`
}

// Publisher is a session.Recorder that publishes each cycle to
// "<prefix>.<session_id>".
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a publisher over an open connection. An empty prefix
// selects DefaultSubjectPrefix; a nil logger disables logging.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Connect dials a NATS server and wraps it in a Publisher.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("neuroadapt"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewPublisher(nc, prefix, logger), nil
}

// Subject returns the subject a session publishes on.
func (p *Publisher) Subject(sessionID string) string {
	return p.prefix + "." + sessionID
}

// Record publishes one cycle snapshot.
func (p *Publisher) Record(ctx context.Context, ev session.CycleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Snapshot{
		SessionID: ev.Version.SessionID,
		VersionID: ev.Version.VersionID,
		ParentID:  ev.Version.ParentID,
		Cycle:     ev.Cycle,
		Trigger:   ev.TriggerType,
		Decision:  ev.Decision,
		Reason:    ev.Reason,
		Traits:    ev.Version.Traits,
		Record:    ev.Record,
		At:        ev.At,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	subject := p.Subject(ev.Version.SessionID)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("snapshot published", zap.String("subject", subject), zap.Int("cycle", ev.Cycle))
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
