package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/registry"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

// handleWebSocket upgrades the connection, registers it with the Hub
// and the Session Registry, and runs the frame loop until the client
// disconnects or sends something unrecoverable.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("api: websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	client := ws.NewClient(clientID, userID, conn)
	s.hub.Register(client)

	record := s.reg.Create(clientID)
	if _, err := s.reg.Authenticate(clientID, userID); err != nil {
		_ = client.SendError(ws.ErrorCodeUsernameTaken, err.Error())
		_ = client.Close()
		s.hub.Unregister(client)
		return
	}

	defer s.disconnect(client, record)

	for {
		frame, err := client.Receive()
		if err != nil {
			return
		}
		s.handleFrame(r.Context(), client, record, frame)
	}
}

func (s *Server) disconnect(client *ws.Client, record *registry.Record) {
	if docID := client.DocID(); docID != "" {
		s.hub.Unsubscribe(client, docID)
	}
	s.hub.Unregister(client)
	_ = s.reg.Close(record.SessionID)
	_ = client.Close()
}

func (s *Server) handleFrame(ctx context.Context, client *ws.Client, record *registry.Record, frame ws.Frame) {
	switch frame.Type {
	case ws.TypeDocOpen:
		s.handleDocOpen(ctx, client, frame)
	case ws.TypeDocClose:
		s.handleDocClose(client, frame)
	case ws.TypeEditInsert, ws.TypeEditDelete, ws.TypeEditReplace:
		s.handleEdit(ctx, client, frame)
	case ws.TypeSyncRequest:
		s.handleSyncRequest(ctx, client, frame)
	case ws.TypePresenceCursor, ws.TypePresenceSelection:
		s.handlePresence(client, frame)
	default:
		_ = client.SendError(ws.ErrorCodeInvalidMessage, fmt.Sprintf("unsupported frame type %d", frame.Type))
	}
}

func (s *Server) handleDocOpen(ctx context.Context, client *ws.Client, frame ws.Frame) {
	doc, err := s.mgr.Open(ctx, frame.DocumentID)
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())
		return
	}

	s.hub.Subscribe(client, frame.DocumentID)
	_ = s.reg.OpenDocument(client.ID, frame.DocumentID)
	s.ensurePresenceSubscription(frame.DocumentID)

	snap := doc.Snapshot()
	_ = client.Send(ws.Frame{
		Type:            ws.TypeSyncState,
		DocumentID:      frame.DocumentID,
		DocumentState:   snap.Content,
		DocumentVersion: snap.Version,
	})
}

func (s *Server) handleDocClose(client *ws.Client, frame ws.Frame) {
	s.hub.Unsubscribe(client, frame.DocumentID)
	_ = s.reg.CloseDocument(client.ID, frame.DocumentID)
}

func (s *Server) handleEdit(ctx context.Context, client *ws.Client, frame ws.Frame) {
	op, err := operationFromFrame(client.UserID, frame)
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())
		return
	}

	doc, err := s.mgr.Open(ctx, frame.DocumentID)
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())
		return
	}

	resolved, revision, err := doc.Process(ctx, op, client.ID, frame.DocumentVersion)
	if err != nil {
		switch {
		case errors.Is(err, sequencer.ErrRevisionInFuture):
			_ = client.SendError(ws.ErrorCodeRevisionInFuture, err.Error())
		case errors.Is(err, sequencer.ErrRejected):
			_ = client.Send(ws.Frame{
				Type:        ws.TypeEditReject,
				DocumentID:  frame.DocumentID,
				OperationID: op.ID.String(),
				Code:        ws.ErrorCodeRejected,
				Message:     err.Error(),
			})
		default:
			_ = client.SendError(ws.ErrorCodeInternalError, err.Error())
		}
		return
	}

	// Fan-out to every other open session happens inside Process via the
	// configured Broadcaster; the author gets their explicit ack here.
	_ = client.Send(ws.Frame{
		Type:            ws.TypeEditApply,
		DocumentID:      frame.DocumentID,
		DocumentVersion: revision,
		Operation:       &resolved,
	})
}

func (s *Server) handleSyncRequest(ctx context.Context, client *ws.Client, frame ws.Frame) {
	doc, err := s.mgr.Open(ctx, frame.DocumentID)
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())
		return
	}

	ops := doc.OperationsSince(frame.FromVersion)
	snap := doc.Snapshot()

	_ = client.Send(ws.Frame{
		Type:            ws.TypeSyncResponse,
		DocumentID:      frame.DocumentID,
		FromVersion:     frame.FromVersion,
		ToVersion:       snap.Version,
		Operations:      ops,
		DocumentVersion: snap.Version,
	})
}

func (s *Server) handlePresence(client *ws.Client, frame ws.Frame) {
	s.hub.Broadcast(frame.DocumentID, ws.Frame{
		Type:           frame.Type,
		DocumentID:     frame.DocumentID,
		ClientID:       client.ID,
		Username:       client.UserID,
		Cursor:         frame.Cursor,
		SelectionStart: frame.SelectionStart,
		SelectionEnd:   frame.SelectionEnd,
	}, client.ID)
}

func operationFromFrame(userID string, frame ws.Frame) (algebra.Operation, error) {
	id := algebra.ID{UserID: userID, Seq: frame.SequenceNumber}

	switch frame.Type {
	case ws.TypeEditInsert:
		return algebra.NewInsert(id, frame.Position, frame.Text), nil
	case ws.TypeEditDelete:
		return algebra.NewDelete(id, frame.Position, frame.Length, ""), nil
	case ws.TypeEditReplace:
		del := algebra.NewDelete(id, frame.Position, frame.Length, "")
		ins := algebra.NewInsert(id, frame.Position, frame.Text)
		return algebra.NewComposite(id, del, ins), nil
	default:
		return algebra.Operation{}, fmt.Errorf("api: unsupported edit frame type %d", frame.Type)
	}
}
