package ocpp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encoder converts messages from/to OCPP-J wire format
type Encoder struct {
}

const ocppEncoderID = "ocpp"

func (Encoder) ID() string {
	return ocppEncoderID
}

// Encode builds an OCPP-J frame. Payloads must be JSON objects (empty payload is sent as {}).
// HTML characters are not escaped, so Decode(Encode(m)) returns an equal message.
func (Encoder) Encode(msg Message) ([]byte, error) {
	var frame interface{}

	switch m := msg.(type) {
	case *Call:
		payload, err := encodeObject(m.Payload, "payload")
		if err != nil {
			return nil, err
		}

		frame = [4]interface{}{CallCode, m.UniqueID, m.Action, payload}
	case *CallResult:
		payload, err := encodeObject(m.Payload, "payload")
		if err != nil {
			return nil, err
		}

		frame = [3]interface{}{CallResultCode, m.UniqueID, payload}
	case *CallError:
		details, err := encodeObject(m.ErrorDetails, "errorDetails")
		if err != nil {
			return nil, err
		}

		frame = [5]interface{}{CallErrorCode, m.UniqueID, m.ErrorCode, m.ErrorDescription, details}
	default:
		return nil, fmt.Errorf("unknown message type: %T", msg)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(frame); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a single OCPP-J frame.
// Payloads are compacted, so Decode(Encode(m)) returns an equal message.
func (Encoder) Decode(raw []byte) (Message, error) {
	parts := []json.RawMessage{}

	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, MalformedEnvelope.Wrap(err, "frame is not a JSON array")
	}

	if len(parts) < 3 || len(parts) > 5 {
		return nil, MalformedEnvelope.New("unexpected number of elements: %d", len(parts))
	}

	var code int

	if err := json.Unmarshal(parts[0], &code); err != nil {
		return nil, MalformedEnvelope.New("unknown message code format: %s", parts[0])
	}

	id, err := decodeString(parts[1], "uniqueId")

	if err != nil {
		return nil, err
	}

	if id == "" {
		return nil, MalformedEnvelope.New("uniqueId must not be empty")
	}

	switch code {
	case CallCode:
		if len(parts) != 4 {
			return nil, MalformedEnvelope.New("call must have 4 elements, got %d", len(parts))
		}

		action, err := decodeString(parts[2], "action")
		if err != nil {
			return nil, err
		}

		if action == "" {
			return nil, MalformedEnvelope.New("action must not be empty")
		}

		payload, err := decodeObject(parts[3], "payload")
		if err != nil {
			return nil, err
		}

		return &Call{UniqueID: id, Action: action, Payload: payload}, nil
	case CallResultCode:
		if len(parts) != 3 {
			return nil, MalformedEnvelope.New("call result must have 3 elements, got %d", len(parts))
		}

		payload, err := decodeObject(parts[2], "payload")
		if err != nil {
			return nil, err
		}

		return &CallResult{UniqueID: id, Payload: payload}, nil
	case CallErrorCode:
		if len(parts) != 5 {
			return nil, MalformedEnvelope.New("call error must have 5 elements, got %d", len(parts))
		}

		errCode, err := decodeString(parts[2], "errorCode")
		if err != nil {
			return nil, err
		}

		description, err := decodeString(parts[3], "errorDescription")
		if err != nil {
			return nil, err
		}

		details, err := decodeObject(parts[4], "errorDetails")
		if err != nil {
			return nil, err
		}

		return &CallError{UniqueID: id, ErrorCode: errCode, ErrorDescription: description, ErrorDetails: details}, nil
	default:
		return nil, MalformedEnvelope.New("unknown message type: %d", code)
	}
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	var val string

	if err := json.Unmarshal(raw, &val); err != nil {
		return "", MalformedEnvelope.New("%s must be a string, got: %s", field, raw)
	}

	return val, nil
}

func decodeObject(raw json.RawMessage, field string) (json.RawMessage, error) {
	var buf bytes.Buffer

	if err := json.Compact(&buf, raw); err != nil {
		return nil, MalformedEnvelope.Wrap(err, "invalid %s", field)
	}

	if buf.Len() == 0 || buf.Bytes()[0] != '{' {
		return nil, MalformedEnvelope.New("%s must be a JSON object, got: %s", field, raw)
	}

	return json.RawMessage(buf.Bytes()), nil
}

func encodeObject(payload json.RawMessage, field string) (json.RawMessage, error) {
	if len(payload) == 0 {
		return emptyObject, nil
	}

	return decodeObject(payload, field)
}
