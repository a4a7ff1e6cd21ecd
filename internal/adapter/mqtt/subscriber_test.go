package mqtt

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

type fakeMessage struct {
	topic    string
	payload  []byte
	id       uint16
	retained bool
	acks     atomic.Int32
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return subscribeQoS }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return m.id }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              { m.acks.Add(1) }

func testSubscriber(flush time.Duration) *Subscriber {
	return newSubscriber("owntracks/+/+", flush, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeviceFromTopic(t *testing.T) {
	tests := map[string]string{
		"owntracks/alice/phone":       "alice/phone",
		"owntracks/alice/phone/event": "",
		"owntracks//phone":            "",
		"fixes/alice/phone":           "",
		"":                            "",
	}
	for topic, want := range tests {
		assert.Equal(t, want, deviceFromTopic(topic), topic)
	}
}

func TestMapMessageToRawFix(t *testing.T) {
	msg := &fakeMessage{
		topic:   "owntracks/alice/phone",
		payload: []byte(`{"_type":"location","lat":51.5,"lon":-0.12,"tst":1700000000}`),
		id:      42,
	}

	raw := mapMessageToRawFix(msg)
	assert.Equal(t, "owntracks/alice/phone", raw.Topic)
	assert.Equal(t, "alice/phone", raw.Device)
	assert.Equal(t, int64(42), raw.Offset)

	fix, err := domain.ParseFix(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice/phone", fix.Device)
	assert.Equal(t, domain.Position{Lat: 51.5, Lon: -0.12}, fix.Position)

	assert.Zero(t, msg.acks.Load())
	require.NoError(t, raw.Commit(context.Background()))
	assert.Equal(t, int32(1), msg.acks.Load())
}

func TestHandle_SkipsRetained(t *testing.T) {
	s := testSubscriber(10 * time.Millisecond)
	msg := &fakeMessage{topic: "owntracks/alice/phone", payload: []byte(`{}`), retained: true}

	s.handle(nil, msg)

	assert.Equal(t, int32(1), msg.acks.Load())
	batch, err := s.ExtractBatch(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestExtractBatch_StopsAtBatchSize(t *testing.T) {
	s := testSubscriber(time.Second)
	for i := range 3 {
		s.handle(nil, &fakeMessage{topic: "owntracks/alice/phone", id: uint16(i)})
	}

	batch, err := s.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(0), batch[0].Offset)
	assert.Equal(t, int64(1), batch[1].Offset)

	batch, err = s.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(2), batch[0].Offset)
}

func TestExtractBatch_FlushIntervalReturnsPartial(t *testing.T) {
	s := testSubscriber(20 * time.Millisecond)
	s.handle(nil, &fakeMessage{topic: "owntracks/alice/phone"})

	start := time.Now()
	batch, err := s.ExtractBatch(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestExtractBatch_ContextCancelled(t *testing.T) {
	s := testSubscriber(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ExtractBatch(ctx, 4)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose_NoClient(t *testing.T) {
	assert.NoError(t, testSubscriber(time.Millisecond).Close())
}
