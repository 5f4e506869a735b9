package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
)

var equateTime = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func sampleDiff() *snapshot.RealizationDiff {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &snapshot.RealizationDiff{
		Status: snapshot.Ptr(state.Running),
		Stages: map[string]*snapshot.StageDiff{
			"0": {Steps: map[string]*snapshot.StepDiff{
				"0": {Jobs: map[string]*snapshot.JobDiff{
					"1": {
						Status:    snapshot.Ptr(state.Running),
						StartTime: &start,
						Data:      map[string]any{"memory": "512M"},
					},
				}},
			}},
		},
	}
}

func TestCodecs_EncodeDecode(t *testing.T) {
	testCases := []struct {
		name  string
		codec Codec
	}{
		{name: "json", codec: JSON{}},
		{name: "msgpack", codec: Msgpack{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := PartialMessage(2, 1, sampleDiff())

			frame, err := tc.codec.Encode(msg)
			require.NoError(t, err)

			got, err := DecodeFrame(tc.codec.Binary(), frame)
			require.NoError(t, err)
			if diff := cmp.Diff(msg, got, equateTime); diff != "" {
				t.Errorf("decoded message mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSON_WireShape(t *testing.T) {
	frame, err := JSON{}.Encode(PartialMessage(0, 3, &snapshot.RealizationDiff{Status: snapshot.Ptr(state.Finished)}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame, &raw))
	assert.Equal(t, "partial", raw["type"])
	assert.Equal(t, "3", raw["iens"])
	assert.EqualValues(t, 0, raw["iter"])
	assert.Equal(t, map[string]any{"status": "Finished"}, raw["partial"])
	assert.NotContains(t, raw, "full")
}

func TestMessage_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{name: "partial", msg: PartialMessage(0, 0, &snapshot.RealizationDiff{})},
		{name: "full", msg: FullMessage(1, 4, &snapshot.Realization{})},
		{name: "missing diff", msg: Message{Type: TypePartial, Iens: "0"}, wantErr: true},
		{name: "missing full", msg: Message{Type: TypeFull, Iens: "0"}, wantErr: true},
		{name: "bad iens", msg: Message{Type: TypePartial, Iens: "x", Partial: &snapshot.RealizationDiff{}}, wantErr: true},
		{name: "negative iter", msg: Message{Type: TypePartial, Iter: -1, Iens: "0", Partial: &snapshot.RealizationDiff{}}, wantErr: true},
		{name: "unknown type", msg: Message{Type: "delta", Iens: "0"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = CodecByName("protobuf")
	assert.Error(t, err)
}

func TestSentinels(t *testing.T) {
	assert.True(t, IsStop([]byte("stop")))
	assert.False(t, IsStop([]byte("stop ")))
	assert.True(t, IsAck([]byte("ack")))
	assert.False(t, IsAck(Stop))
}
