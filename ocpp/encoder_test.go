package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderEncode(t *testing.T) {
	coder := Encoder{}

	t.Run("Call", func(t *testing.T) {
		msg := &Call{UniqueID: "we57", Action: "RemoteStopTransaction", Payload: json.RawMessage(`{"transactionId":123}`)}

		actual, err := coder.Encode(msg)

		require.NoError(t, err)
		assert.Equal(t, `[2,"we57","RemoteStopTransaction",{"transactionId":123}]`, string(actual))
	})

	t.Run("CallResult", func(t *testing.T) {
		msg := &CallResult{UniqueID: "alai2022", Payload: json.RawMessage(`{"status":"whoknows"}`)}

		actual, err := coder.Encode(msg)

		require.NoError(t, err)
		assert.Equal(t, `[3,"alai2022",{"status":"whoknows"}]`, string(actual))
	})

	t.Run("CallResult without payload", func(t *testing.T) {
		actual, err := coder.Encode(&CallResult{UniqueID: "3"})

		require.NoError(t, err)
		assert.Equal(t, `[3,"3",{}]`, string(actual))
	})

	t.Run("CallError", func(t *testing.T) {
		msg := &CallError{UniqueID: "54", ErrorCode: "FormationViolation", ErrorDescription: "Already connected", ErrorDetails: json.RawMessage(`{"context":"whateva"}`)}

		actual, err := coder.Encode(msg)

		require.NoError(t, err)
		assert.Equal(t, `[4,"54","FormationViolation","Already connected",{"context":"whateva"}]`, string(actual))
	})

	t.Run("CallError without details", func(t *testing.T) {
		actual, err := coder.Encode(&CallError{UniqueID: "4", ErrorCode: "NotImplemented", ErrorDescription: "no handler for action FooBarAction"})

		require.NoError(t, err)
		assert.Equal(t, `[4,"4","NotImplemented","no handler for action FooBarAction",{}]`, string(actual))
	})
}

func TestEncoderEncodeHTML(t *testing.T) {
	actual, err := Encoder{}.Encode(&CallResult{UniqueID: "1", Payload: json.RawMessage(`{"info":"a<b&c"}`)})

	require.NoError(t, err)
	assert.Equal(t, `[3,"1",{"info":"a<b&c"}]`, string(actual))
}

func TestEncoderEncodeInvalidPayload(t *testing.T) {
	coder := Encoder{}

	messages := map[string]Message{
		"not json":        &Call{UniqueID: "1", Action: "DataTransfer", Payload: json.RawMessage(`not json`)},
		"null result":     &CallResult{UniqueID: "2", Payload: json.RawMessage(`null`)},
		"array result":    &CallResult{UniqueID: "3", Payload: json.RawMessage(`[1,2]`)},
		"string details":  &CallError{UniqueID: "4", ErrorCode: "GenericError", ErrorDetails: json.RawMessage(`"oops"`)},
		"unknown message": nil,
	}

	for name, msg := range messages {
		t.Run(name, func(t *testing.T) {
			_, err := coder.Encode(msg)
			assert.Error(t, err)
		})
	}
}

func TestEncoderDecode(t *testing.T) {
	coder := Encoder{}

	t.Run("BootNotification", func(t *testing.T) {
		msg := `[2,"15","BootNotification",{"chargePointModel":"CPM","chargePointVendor":"CPV","meterSerialNumber":"MSN"}]`

		actual, err := coder.Decode([]byte(msg))

		require.NoError(t, err)
		assert.Equal(t, "15", actual.ID())
		assert.Equal(t, CallCode, actual.Code())

		call, ok := actual.(*Call)

		require.Truef(t, ok, "message is not a Call: %v", actual)

		assert.Equal(t, BootCommand, call.Action)
		assert.JSONEq(t, `{"chargePointModel":"CPM","chargePointVendor":"CPV","meterSerialNumber":"MSN"}`, string(call.Payload))
	})

	t.Run("Payload is compacted", func(t *testing.T) {
		actual, err := coder.Decode([]byte(`[ 2, "16", "Heartbeat", { } ]`))

		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`{}`), actual.(*Call).Payload)
	})

	t.Run("CallResult", func(t *testing.T) {
		msg := `[3,"44",{"status":"Accepted"}]`

		actual, err := coder.Decode([]byte(msg))

		require.NoError(t, err)
		assert.Equal(t, CallResultCode, actual.Code())
		assert.Equal(t, "44", actual.ID())

		data, ok := actual.(*CallResult)

		require.True(t, ok)
		assert.Equal(t, `{"status":"Accepted"}`, string(data.Payload))
	})

	t.Run("CallError", func(t *testing.T) {
		msg := `[4,"13","9338", "Doma byt' zaebis'", {"currentMusic":"Alai Oli"}]`

		actual, err := coder.Decode([]byte(msg))

		require.NoError(t, err)
		assert.Equal(t, CallErrorCode, actual.Code())
		assert.Equal(t, "13", actual.ID())

		data, ok := actual.(*CallError)

		require.True(t, ok)

		assert.Equal(t, "9338", data.ErrorCode)
		assert.Equal(t, "Doma byt' zaebis'", data.ErrorDescription)
		assert.Equal(t, `{"currentMusic":"Alai Oli"}`, string(data.ErrorDetails))
	})
}

func TestEncoderDecodeMalformed(t *testing.T) {
	coder := Encoder{}

	frames := map[string]string{
		"not JSON":                 `[2,"1","Heartbeat"`,
		"object":                   `{"id":"1"}`,
		"string":                   `"hello"`,
		"empty array":              `[]`,
		"too short":                `[2,"1"]`,
		"too long":                 `[4,"1","code","desc",{},{}]`,
		"unknown type":             `[5,"1",{}]`,
		"zero type":                `[0,"1","Heartbeat",{}]`,
		"string type":              `["2","1","Heartbeat",{}]`,
		"fractional type":          `[2.5,"1","Heartbeat",{}]`,
		"numeric id":               `[2,1,"Heartbeat",{}]`,
		"empty id":                 `[2,"","Heartbeat",{}]`,
		"call without payload":     `[2,"1","Heartbeat"]`,
		"call with numeric action": `[2,"1",42,{}]`,
		"call with empty action":   `[2,"1","",{}]`,
		"call with array payload":  `[2,"1","Heartbeat",[]]`,
		"result with extra":        `[3,"1",{},{}]`,
		"result with string":       `[3,"1","ok"]`,
		"error without details":    `[4,"13","code","desc"]`,
		"error without code":       `[4,"13"]`,
		"error with numeric code":  `[4,"13",42,"desc",{}]`,
		"error with null details":  `[4,"13","code","desc",null]`,
	}

	for name, frame := range frames {
		frame := frame

		t.Run(name, func(t *testing.T) {
			msg, err := coder.Decode([]byte(frame))

			require.Error(t, err)
			assert.Nil(t, msg)
			assert.True(t, IsMalformed(err), "expected malformed envelope error, got: %v", err)
		})
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	coder := Encoder{}

	messages := []Message{
		&Call{UniqueID: "1", Action: "BootNotification", Payload: json.RawMessage(`{"chargePointModel":"X1","chargePointVendor":"Acme"}`)},
		&Call{UniqueID: "b7a1", Action: "Heartbeat", Payload: json.RawMessage(`{}`)},
		&CallResult{UniqueID: "2", Payload: json.RawMessage(`{"currentTime":"2023-01-01T00:00:00Z"}`)},
		&CallResult{UniqueID: "x", Payload: json.RawMessage(`{"nested":{"list":[1,2,3],"null":null}}`)},
		&CallError{UniqueID: "3", ErrorCode: "InternalError", ErrorDescription: "Internal error", ErrorDetails: json.RawMessage(`{}`)},
		&CallError{UniqueID: "4", ErrorCode: "GenericError", ErrorDescription: "", ErrorDetails: json.RawMessage(`{"reason":"unicode ✓"}`)},
		&CallResult{UniqueID: "5", Payload: json.RawMessage(`{"info":"a<b&c"}`)},
		&CallError{UniqueID: "6", ErrorCode: "GenericError", ErrorDescription: "<script>", ErrorDetails: json.RawMessage(`{"html":"<p>&amp;</p>"}`)},
	}

	for _, msg := range messages {
		raw, err := coder.Encode(msg)
		require.NoError(t, err)

		decoded, err := coder.Decode(raw)
		require.NoError(t, err)

		assert.Equal(t, msg, decoded)
	}
}
