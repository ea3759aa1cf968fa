package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/repo"
	"github.com/richardliu001/pharmacy-credit/internal/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failAt int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.msgs)+1 == f.failAt {
		return errors.New("kafka: leader not available")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func seedEvents(t *testing.T, r *repo.Repository, n int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	for i := 0; i < n; i++ {
		evt := &model.OutboxEvent{
			Aggregate:   "Customer",
			AggregateID: id,
			EventType:   model.EventPaymentRecorded,
			Payload:     `{"amount":"-1.00"}`,
		}
		require.NoError(t, r.CreateOutboxEvent(context.Background(), r.DB(context.Background()), evt))
	}
	return id
}

func TestRunOnce_PublishesAndMarks(t *testing.T) {
	db := testutil.NewDB(t)
	w := &fakeWriter{}
	r := repo.NewRepository(db, nil, w, zap.NewNop().Sugar())
	id := seedEvents(t, r, 3)

	relay := NewRelay(r, zap.NewNop().Sugar(), 10, time.Second)
	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, w.msgs, 3)
	assert.Equal(t, []byte(id.String()), w.msgs[0].Key)

	pending, err := r.PollOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOnce_StopsAtFirstFailure(t *testing.T) {
	db := testutil.NewDB(t)
	w := &fakeWriter{failAt: 2}
	r := repo.NewRepository(db, nil, w, zap.NewNop().Sugar())
	seedEvents(t, r, 3)

	relay := NewRelay(r, zap.NewNop().Sugar(), 10, time.Second)
	n, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := r.PollOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRunOnce_BatchSize(t *testing.T) {
	db := testutil.NewDB(t)
	r := repo.NewRepository(db, nil, &fakeWriter{}, zap.NewNop().Sugar())
	seedEvents(t, r, 5)

	relay := NewRelay(r, zap.NewNop().Sugar(), 2, time.Second)
	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	db := testutil.NewDB(t)
	w := &fakeWriter{}
	r := repo.NewRepository(db, nil, w, zap.NewNop().Sugar())
	seedEvents(t, r, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRelay(r, zap.NewNop().Sugar(), 10, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
