package api

import (
	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

// hubBroadcaster adapts *ws.Hub to sequencer.Broadcaster, translating a
// canonical operation into an Edit-Apply frame. The sequencer never
// imports ws directly, so this adapter is the only place that
// knowledge lives — swapping in internal/presence's Redis-backed
// broadcaster for cross-process fan-out requires no sequencer change.
type hubBroadcaster struct {
	hub *ws.Hub
}

// NewHubBroadcaster wraps hub as a sequencer.Broadcaster.
func NewHubBroadcaster(hub *ws.Hub) sequencer.Broadcaster {
	return hubBroadcaster{hub: hub}
}

func (h hubBroadcaster) Broadcast(docID string, op algebra.Operation, revision uint64, excludeClientID string) {
	h.hub.Broadcast(docID, ws.Frame{
		Type:            ws.TypeEditApply,
		DocumentID:      docID,
		DocumentVersion: revision,
		Operation:       &op,
	}, excludeClientID)
}
