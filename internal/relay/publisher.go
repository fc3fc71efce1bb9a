// Package relay republishes engine change events to NATS JetStream so
// archival and analytics tooling can consume the same feed the UI renders.
// The relay is strictly an observer: a slow or down broker never blocks the
// engine.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/engine"
)

// Config holds JetStream relay configuration.
type Config struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "SHOW_EVENTS",
		SubjectPrefix: "show.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        7 * 24 * time.Hour,
	}
}

// Publisher owns the NATS connection and the target stream.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

func NewPublisher(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Live-show engine change events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err := p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

// Run consumes the engine change feed until it closes or ctx is cancelled.
// Publishes are async; failures are logged and dropped.
func (p *Publisher) Run(ctx context.Context, changes <-chan engine.Change) {
	log.Info().Str("stream", p.config.StreamName).Msg("relay started")
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				log.Info().Msg("change feed closed, relay stopping")
				return
			}
			p.publish(c)
		}
	}
}

func (p *Publisher) publish(c engine.Change) {
	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, c.RoomID, c.Event)

	env := map[string]any{
		"eventId":   uuid.New().String(),
		"eventType": c.Event,
		"roomId":    c.RoomID,
		"timestamp": time.Now().UTC(),
		"payload":   c.Data,
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("change", c.Event).Msg("marshal relay event")
		return
	}

	if _, err := p.js.PublishAsync(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("relay publish failed, dropping")
	}
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}
