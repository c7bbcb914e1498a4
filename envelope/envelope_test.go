package envelope_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/neatoo/envelope"
	"github.com/arc-self/neatoo/neatooerr"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	frame := envelope.RequestFrame{
		DelegateName: "Person.Fetch#1",
		Parameters:   []json.RawMessage{json.RawMessage(`42`)},
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var got envelope.RequestFrame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, frame.DelegateName, got.DelegateName)
	assert.Equal(t, string(frame.Parameters[0]), string(got.Parameters[0]))
}

func TestStatusForKind(t *testing.T) {
	cases := map[neatooerr.Kind]int{
		neatooerr.KindBadRequest:            400,
		neatooerr.KindSerializationMismatch: 400,
		neatooerr.KindUnknownDelegate:       404,
		neatooerr.KindMissingService:        500,
		neatooerr.KindNotAuthorized:         403,
		neatooerr.KindCanceled:              499,
		neatooerr.KindSaveNotSupported:      409,
		neatooerr.KindDomain:                422,
	}
	for kind, want := range cases {
		assert.Equal(t, want, envelope.StatusForKind(kind), "kind=%s", kind)
	}
}
