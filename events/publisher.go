// events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wfunc/rpsarena/logger"
	"github.com/wfunc/rpsarena/models"
)

// Publisher 对局结果推送
type Publisher interface {
	PublishRound(ctx context.Context, record models.GameRecord) error
	Close() error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRound(context.Context, models.GameRecord) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes every resolved round as JSON on one subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher 连接 NATS；断线无限重连
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("rpsarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Log.Infof("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSPublisher(nc, subject), nil
}

func newNATSPublisher(c conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject}
}

func (p *NATSPublisher) PublishRound(_ context.Context, record models.GameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

// Close flushes pending messages and drains the connection.
func (p *NATSPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		logger.Log.Warnf("NATS flush: %v", err)
	}
	return p.conn.Drain()
}

// New returns a NATS publisher when url is set, NopPublisher otherwise.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(url, subject)
}
