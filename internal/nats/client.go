package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/saviobatista/trackrescue/internal/types"
)

const (
	SubjectArchive = "track.archive"
	SubjectDecoded = "track.decoded"

	// DecoderQueue is the durable queue group shared by ingestor instances
	DecoderQueue = "decoders"
)

var streams = []*nats.StreamConfig{
	{
		Name:     "TRACK_ARCHIVES",
		Subjects: []string{SubjectArchive},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	},
	{
		Name:     "TRACK_DECODED",
		Subjects: []string{SubjectDecoded},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	},
}

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	for _, cfg := range streams {
		_, err = js.AddStream(cfg)
		if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
		}
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// MaxPayload returns the largest message the server accepts
func (c *Client) MaxPayload() int64 {
	return c.conn.MaxPayload()
}

// PublishArchive submits an archive for decoding
func (c *Client) PublishArchive(msg *types.ArchiveMessage) error {
	if msg == nil {
		return fmt.Errorf("nil archive message")
	}
	return c.publish(SubjectArchive, msg)
}

// PublishDecoded announces the summary of a finished decode
func (c *Client) PublishDecoded(summary *types.Summary) error {
	if summary == nil {
		return fmt.Errorf("nil summary")
	}
	return c.publish(SubjectDecoded, summary)
}

func (c *Client) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// SubscribeArchives delivers archive submissions to handler through the
// durable decoder queue. A message is acknowledged when handler returns nil
// and redelivered otherwise.
func (c *Client) SubscribeArchives(handler func(*types.ArchiveMessage) error) error {
	if handler == nil {
		return fmt.Errorf("nil handler")
	}
	_, err := c.js.QueueSubscribe(SubjectArchive, DecoderQueue, func(msg *nats.Msg) {
		var archive types.ArchiveMessage
		if err := json.Unmarshal(msg.Data, &archive); err != nil {
			log.Printf("Error unmarshaling archive message: %v", err)
			_ = msg.Term()
			return
		}
		if err := handler(&archive); err != nil {
			log.Printf("Error handling archive %s: %v", archive.ID, err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.Durable(DecoderQueue), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// SubscribeDecoded delivers decode summaries to handler
func (c *Client) SubscribeDecoded(handler func(*types.Summary)) error {
	if handler == nil {
		return fmt.Errorf("nil handler")
	}
	_, err := c.js.Subscribe(SubjectDecoded, func(msg *nats.Msg) {
		var summary types.Summary
		if err := json.Unmarshal(msg.Data, &summary); err != nil {
			log.Printf("Error unmarshaling summary: %v", err)
			return
		}
		handler(&summary)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
