package messaging

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/platerank/internal/validation"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (i *recordingInvalidator) InvalidateUser(userID uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
}

func orderEvent(userID uuid.UUID) []byte {
	return []byte(`{"event_type":"order.placed","order_id":"` + uuid.NewString() +
		`","user_id":"` + userID.String() +
		`","restaurant_id":"` + uuid.NewString() +
		`","created_at":"` + time.Now().UTC().Format(time.RFC3339) + `"}`)
}

func TestOrderEventConsumer_InvalidatesUsers(t *testing.T) {
	validator, err := validation.NewSchemaValidator()
	require.NoError(t, err)

	alice, bob := uuid.New(), uuid.New()
	reader := &fakeReader{messages: []kafka.Message{
		{Value: orderEvent(alice)},
		{Value: []byte(`{"event_type":"order.placed"}`)},
		{Value: []byte(`garbage`)},
		{Value: orderEvent(bob)},
	}}
	invalidator := &recordingInvalidator{}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	consumer := newOrderEventConsumer(reader, validator, invalidator, logger)
	require.NoError(t, consumer.Run(context.Background()))

	assert.Equal(t, []uuid.UUID{alice, bob}, invalidator.users)
	assert.Len(t, reader.committed, 4)

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

func TestOrderEventConsumer_StopsOnCancel(t *testing.T) {
	validator, err := validation.NewSchemaValidator()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer := newOrderEventConsumer(&blockingReader{}, validator, &recordingInvalidator{}, logrus.New())
	assert.NoError(t, consumer.Run(ctx))
}

type blockingReader struct{}

func (blockingReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (blockingReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (blockingReader) Close() error                                         { return nil }
