package threadfeed

import (
	"encoding/json"
	"fmt"
)

// IdentityEventKind enumerates the identity-provider webhook events this
// library understands. Unknown kinds parse to IdentityEventUnknown and are
// treated as no-ops, never as errors.
type IdentityEventKind string

const (
	IdentityEventUserCreated IdentityEventKind = "user.created"
	IdentityEventUserUpdated IdentityEventKind = "user.updated"
	IdentityEventUserDeleted IdentityEventKind = "user.deleted"
	IdentityEventUnknown     IdentityEventKind = ""
)

// IdentityEvent is the parsed form of an identity-provider webhook
// delivery. Only user-created events carry a payload this library acts on.
type IdentityEvent struct {
	Kind    IdentityEventKind
	RawKind string
	User    *CreateUserRequest
}

type identityEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type identityUserPayload struct {
	ID             string  `json:"id"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Username       *string `json:"username"`
	ImageURL       *string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// ParseIdentityEvent decodes a webhook body into a tagged event. The
// provider sends loosely-typed JSON with nullable fields; missing or null
// values become zero values rather than parse failures. A malformed body
// is an error, an unrecognized event type is not.
func ParseIdentityEvent(body []byte) (*IdentityEvent, error) {
	var env identityEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	event := &IdentityEvent{RawKind: env.Type}

	switch IdentityEventKind(env.Type) {
	case IdentityEventUserCreated:
		event.Kind = IdentityEventUserCreated
	case IdentityEventUserUpdated:
		event.Kind = IdentityEventUserUpdated
	case IdentityEventUserDeleted:
		event.Kind = IdentityEventUserDeleted
	default:
		event.Kind = IdentityEventUnknown
		return event, nil
	}

	if event.Kind != IdentityEventUserCreated {
		return event, nil
	}

	var payload identityUserPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("malformed user payload: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("user payload missing id")
	}

	req := &CreateUserRequest{Subject: payload.ID}
	req.FirstName = deref(payload.FirstName)
	req.LastName = deref(payload.LastName)
	req.Handle = deref(payload.Username)
	req.ImageURL = deref(payload.ImageURL)
	if len(payload.EmailAddresses) > 0 {
		req.Email = payload.EmailAddresses[0].EmailAddress
	}

	event.User = req
	return event, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
