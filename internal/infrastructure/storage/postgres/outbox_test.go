package postgres

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxPublisher_CompressesAboveThreshold(t *testing.T) {
	pub, err := NewOutboxPublisher(nil, 64)
	require.NoError(t, err)
	relay, err := NewOutboxRelay(nil, nil, OutboxRelayConfig{})
	require.NoError(t, err)

	small := []byte(`{"id":"o1"}`)
	payload, compression := pub.encode(small)
	assert.Equal(t, CompressionNone, compression)
	assert.Equal(t, small, payload)

	large := bytes.Repeat([]byte(`{"productId":"p1","qty":1},`), 100)
	payload, compression = pub.encode(large)
	assert.Equal(t, CompressionZstd, compression)
	assert.Less(t, len(payload), len(large))

	msg := &OutboxMessage{Payload: payload, Compression: compression}
	require.NoError(t, relay.decode(msg))
	assert.Equal(t, large, msg.Payload)
	assert.Equal(t, CompressionNone, msg.Compression)
}

func TestOutboxRelay_DecodeCorrupt(t *testing.T) {
	relay, err := NewOutboxRelay(nil, nil, OutboxRelayConfig{})
	require.NoError(t, err)

	msg := &OutboxMessage{Payload: []byte("not zstd"), Compression: CompressionZstd}
	assert.Error(t, relay.decode(msg))
}

func TestOutboxPublisher_RequiresTransaction(t *testing.T) {
	pub, err := NewOutboxPublisher(&TxManager{}, 0)
	require.NoError(t, err)

	err = pub.Publish(context.Background(), DomainEvent{EventType: "movementDelete", Payload: []byte("{}")})
	assert.ErrorContains(t, err, "transaction")
}
