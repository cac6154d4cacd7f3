package transport

import (
	"encoding/json"
	"strings"

	apperrors "chatsync/internal/errors"
	"chatsync/pkg/transport/types"
)

type envelope struct {
	Type string `json:"type"`
}

// DecodeEvent parses one inbound frame.
//
// Frames with an unrecognized type decode into types.UnknownEvent without
// error. Invalid JSON, a missing type or a payload that does not match its
// type yield a MALFORMED_EVENT error.
func DecodeEvent(data []byte) (types.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.NewMalformedEventError("", err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return nil, apperrors.NewMalformedEventError("", nil).WithContext("reason", "missing type")
	}

	switch env.Type {
	case types.TypeMessageStatus:
		var ev types.StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, apperrors.NewMalformedEventError(env.Type, err)
		}
		return ev, nil
	case types.TypeReceiveMessage:
		var ev types.MessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, apperrors.NewMalformedEventError(env.Type, err)
		}
		return ev, nil
	case types.TypeTypingIndicator:
		var ev types.TypingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, apperrors.NewMalformedEventError(env.Type, err)
		}
		return ev, nil
	case types.TypeConnectionEstablished:
		return types.ConnectionEstablishedEvent{}, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return types.UnknownEvent{Type: env.Type, Raw: raw}, nil
	}
}
