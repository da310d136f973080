package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/pipelineapi/pkg/tlsutil"
	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher sends events as JSON messages on core NATS subjects.
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// NATSConfig configures ConnectNATS.
type NATSConfig struct {
	URL string
	// SubjectPrefix is prepended to every subject, e.g. "prod.".
	SubjectPrefix string
	TLS           tlsutil.TLSConfig
}

// ConnectNATS dials the server and returns a publisher that owns the connection.
func ConnectNATS(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{nats.Name("pipelineapi")}
	if cfg.TLS.Enabled {
		tlsCfg, err := tlsutil.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("nats: TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsCfg))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(conn, cfg.SubjectPrefix, logger), nil
}

func NewNATSPublisher(conn Conn, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject = p.prefix + subject
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %q: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject, "pipeline", evt.Pipeline, "id", evt.ID)
	return nil
}

// Close closes the underlying connection.
func (p *NATSPublisher) Close() { p.conn.Close() }
