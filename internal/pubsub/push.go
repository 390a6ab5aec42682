// Package pubsub decodes Pub/Sub push deliveries of storage change notifications.
package pubsub

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"time"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/validation"
)

// PushEnvelope is the body Pub/Sub POSTs to a push endpoint.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is one Pub/Sub message.
type PushMessage struct {
	Attributes  Attributes `json:"attributes"`
	Data        string     `json:"data,omitempty"`
	MessageID   string     `json:"messageId"`
	PublishTime time.Time  `json:"publishTime"`
}

// Attributes are the notification attributes set by the storage service.
type Attributes struct {
	EventType               string `json:"eventType" validate:"required"`
	ObjectID                string `json:"objectId" validate:"required"`
	BucketID                string `json:"bucketId,omitempty"`
	ObjectGeneration        string `json:"objectGeneration" validate:"required,number"`
	OverwroteGeneration     string `json:"overwroteGeneration,omitempty" validate:"omitempty,number"`
	OverwrittenByGeneration string `json:"overwrittenByGeneration,omitempty" validate:"omitempty,number"`
	PayloadFormat           string `json:"payloadFormat,omitempty"`
}

// ObjectPayload is the subset of the JSON_API_V1 object resource carried in Data.
type ObjectPayload struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// Payload decodes the base64 object resource. It returns nil when the
// notification was configured without a payload.
func (m PushMessage) Payload() (*ObjectPayload, error) {
	if m.Data == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "message data is not base64")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var p ObjectPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "message data is not an object resource")
	}
	return &p, nil
}

// Decoder turns push bodies into storage events.
type Decoder struct {
	validator *validation.Validator
}

// NewDecoder creates a Decoder.
func NewDecoder(v *validation.Validator) *Decoder {
	if v == nil {
		v = validation.New()
	}
	return &Decoder{validator: v}
}

// ParseEnvelope decodes body. Bodies that arrive percent-encoded, possibly with
// trailing '=' padding, are unescaped first.
func (d *Decoder) ParseEnvelope(body []byte) (*PushEnvelope, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		unescaped, uerr := url.PathUnescape(string(body))
		if uerr != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "malformed push envelope")
		}
		unescaped = trimPadding(unescaped)
		if err := json.Unmarshal([]byte(unescaped), &env); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "malformed push envelope")
		}
	}

	if err := d.validator.Validate(env.Message.Attributes); err != nil {
		return nil, err
	}
	return &env, nil
}

// Decode parses body into a StorageEvent.
func (d *Decoder) Decode(body []byte) (domain.StorageEvent, error) {
	env, err := d.ParseEnvelope(body)
	if err != nil {
		return domain.StorageEvent{}, err
	}
	return env.Event()
}

// Event converts the envelope into a StorageEvent. The bucket comes from the
// attributes, falling back to the payload.
func (e *PushEnvelope) Event() (domain.StorageEvent, error) {
	attrs := e.Message.Attributes
	event := domain.StorageEvent{
		Type:                    domain.EventType(attrs.EventType),
		ObjectID:                attrs.ObjectID,
		Bucket:                  attrs.BucketID,
		Generation:              attrs.ObjectGeneration,
		OverwroteGeneration:     attrs.OverwroteGeneration,
		OverwrittenByGeneration: attrs.OverwrittenByGeneration,
		MessageID:               e.Message.MessageID,
		PublishTime:             e.Message.PublishTime,
	}

	if event.Bucket == "" {
		payload, err := e.Message.Payload()
		if err != nil {
			return domain.StorageEvent{}, err
		}
		if payload != nil {
			event.Bucket = payload.Bucket
		}
	}
	return event, nil
}

func trimPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
