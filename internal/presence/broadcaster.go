// Package presence provides a Redis pub/sub Broadcaster so canonical
// operations fan out across every server process sharing a document,
// not just goroutines within one. Cursor and selection frames are not
// carried here; they go only through the local internal/ws.Hub. This is
// the second leg for a multi-process deployment.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

const channelPrefix = "collab:doc:"

// Message is the payload published to a document's Redis channel.
type Message struct {
	DocID           string            `json:"docId"`
	Op              algebra.Operation `json:"op"`
	Revision        uint64            `json:"revision"`
	ExcludeClientID string            `json:"excludeClientId"`
	OriginProcessID string            `json:"originProcessId"`
}

// Broadcaster publishes canonical operations to a document's Redis
// channel and invokes a local delivery function both for its own
// broadcasts and for messages published by other processes. It
// satisfies sequencer.Broadcaster.
type Broadcaster struct {
	client    *redis.Client
	processID string
	logger    *slog.Logger
	deliver   func(docID string, op algebra.Operation, revision uint64, excludeClientID string)
}

// Config holds the collaborators Broadcaster needs.
type Config struct {
	Client    *redis.Client
	ProcessID string
	Logger    *slog.Logger

	// Deliver is invoked by Broadcast for this process's own operations
	// and for every message received from Redis that did not originate
	// from this process — typically a thin adapter that forwards to the
	// local ws.Hub.
	Deliver func(docID string, op algebra.Operation, revision uint64, excludeClientID string)
}

// New creates a Redis-backed Broadcaster.
func New(cfg Config) *Broadcaster {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		client:    cfg.Client,
		processID: cfg.ProcessID,
		logger:    logger,
		deliver:   cfg.Deliver,
	}
}

// Broadcast delivers a canonical operation to every subscriber in this
// process via Deliver, then publishes it to docID's Redis channel so
// every other process sharing the document does the same. It implements
// sequencer.Broadcaster: in Redis mode this is the sequencer's only
// broadcaster, so the local delivery here is what reaches same-process
// clients on ws.Hub — Subscribe only handles the cross-process leg.
func (b *Broadcaster) Broadcast(docID string, op algebra.Operation, revision uint64, excludeClientID string) {
	if b.deliver != nil {
		b.deliver(docID, op, revision, excludeClientID)
	}

	msg := Message{
		DocID:           docID,
		Op:              op,
		Revision:        revision,
		ExcludeClientID: excludeClientID,
		OriginProcessID: b.processID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("presence: encode broadcast message", "docId", docID, "error", err)
		return
	}

	if err := b.client.Publish(context.Background(), channelFor(docID), data).Err(); err != nil {
		b.logger.Error("presence: publish", "docId", docID, "error", err)
	}
}

// Subscribe opens a Redis subscription for docID and delivers every
// message from another process to Deliver, until ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, docID string) error {
	sub := b.client.Subscribe(ctx, channelFor(docID))
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage(docID, raw.Payload)
		}
	}
}

func (b *Broadcaster) handleMessage(docID, payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Error("presence: decode broadcast message", "docId", docID, "error", err)
		return
	}

	if msg.OriginProcessID == b.processID {
		return // Broadcast already delivered this locally before publishing.
	}

	if b.deliver != nil {
		b.deliver(msg.DocID, msg.Op, msg.Revision, msg.ExcludeClientID)
	}
}

func channelFor(docID string) string {
	return fmt.Sprintf("%s%s", channelPrefix, docID)
}
