package mq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEvent_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := ChangeEvent{Collection: "inventories", RecordKey: "p1", ChangedAt: at}.Encode("changes")
	require.NoError(t, err)
	assert.Equal(t, "changes", msg.Topic)
	assert.Equal(t, []byte("inventories"), msg.Key)

	ev, err := DecodeChangeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "p1", ev.RecordKey)
	assert.True(t, at.Equal(ev.ChangedAt))
}

func TestDecodeChangeEvent(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    string
		wantErr bool
	}{
		{"json body", Message{Value: []byte(`{"collection":"shops"}`)}, "shops", false},
		{"plain key", Message{Key: []byte("users"), Value: []byte("not json")}, "users", false},
		{"key when body lacks collection", Message{Key: []byte(" invoiceitems "), Value: []byte(`{}`)}, "invoiceitems", false},
		{"empty", Message{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeChangeEvent(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyCollection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Collection)
		})
	}
}

func TestChangeEvent_EncodeRequiresCollection(t *testing.T) {
	_, err := ChangeEvent{}.Encode("changes")
	assert.ErrorIs(t, err, ErrEmptyCollection)
}
