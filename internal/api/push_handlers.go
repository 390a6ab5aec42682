package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sharedalbum/album-server/internal/errors"
)

// PushPath is where the Pub/Sub push subscription delivers storage notifications.
const PushPath = "/_ah/push-handlers/receive_message"

func (s *Server) registerPushRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "receiveStorageNotification",
		Method:        http.MethodPost,
		Path:          PushPath,
		Summary:       "Receive storage notification",
		Description:   "Pub/Sub push endpoint for object change notifications. Acknowledges processed, ignored and repeated deliveries with 204; answers 500 when processing failed so the message is redelivered.",
		Tags:          []string{"Ingestion"},
		DefaultStatus: http.StatusNoContent,
		MaxBodyBytes:  MaxPushBodySize,
	}, s.handleReceiveMessage)
}

// PushInput carries the raw push body. Bodies are decoded by hand because some
// deliveries arrive percent-encoded rather than as plain JSON.
type PushInput struct {
	RawBody []byte
}

func (s *Server) handleReceiveMessage(ctx context.Context, input *PushInput) (*struct{}, error) {
	event, err := s.decoder.Decode(input.RawBody)
	if err != nil {
		s.logger.Warn("rejecting malformed push message", "error", err)
		return nil, err
	}

	if s.processor == nil {
		return nil, errors.Unavailable("event processing is not configured")
	}

	outcome, err := s.processor.ProcessEvent(ctx, event)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to process storage notification")
	}

	s.logger.Debug("push message acknowledged",
		"message_id", event.MessageID,
		"event_type", event.Type,
		"object", event.ObjectID,
		"outcome", outcome,
	)
	return nil, nil
}
