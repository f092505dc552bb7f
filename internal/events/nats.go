package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
)

const (
	defaultStream        = "BOOKVERSIONS"
	defaultSubjectPrefix = "bookversions"
	publishTimeout       = 5 * time.Second
	setupTimeout         = 10 * time.Second
)

// NATSPublisher publishes events to a JetStream stream. The subject of an event is
// "<prefix>.<type>".
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// NewNATSPublisher connects to NATS and creates or updates the event stream.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("events: NATS url is required")
	}
	conn, err := nats.Connect(cfg.NATSURL, nats.Name("bookversions"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Book publication and job lifecycle events",
		Subjects:    []string{prefix + ".>"},
		MaxAge:      7 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create event stream %s: %w", stream, err)
	}

	slog.Info("NATS event publisher initialized",
		slog.String("url", cfg.NATSURL),
		slog.String("stream", stream),
		slog.String("subject_prefix", prefix))
	return &NATSPublisher{conn: conn, js: js, prefix: prefix}, nil
}

// Subject returns the subject evt is published on.
func (p *NATSPublisher) Subject(evt Event) string {
	return p.prefix + "." + string(evt.Type)
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, p.Subject(evt), data, jetstream.WithMsgID(evt.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	slog.Debug("Published event", slog.String("type", string(evt.Type)), logfields.JobID(evt.JobID))
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}

// Open returns the publisher configured by cfg: NATS when a url is set, otherwise a no-op.
func Open(cfg config.EventsConfig) (Publisher, error) {
	if cfg.NATSURL == "" {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg)
}
