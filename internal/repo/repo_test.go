package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/logger"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}

func TestUpdateBalance_OptimisticLock(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.SeedCustomer(t, db, "Ana", "100.00")
	r := NewRepository(db, nil, nil, must(logger.NewLogger()))
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := r.GetCustomerForUpdate(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		return r.UpdateBalance(ctx, tx, c.ID, locked.CreditBalance.Add(decimal.NewFromInt(10)), locked.Version)
	})
	require.NoError(t, err)

	// the version moved on, so a stale writer loses
	err = r.UpdateBalance(ctx, db, c.ID, decimal.NewFromInt(1), c.Version)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got := testutil.ReloadCustomer(t, db, c.ID)
	assert.Equal(t, "110.00", got.CreditBalance.StringFixed(2))
	assert.Equal(t, c.Version+1, got.Version)
}

func TestGetCustomer_NotFound(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewRepository(db, nil, nil, must(logger.NewLogger()))

	_, err := r.GetCustomer(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateCustomer_StartsAtZero(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewRepository(db, nil, nil, must(logger.NewLogger()))
	ctx := context.Background()

	c := &model.Customer{Name: "Bea", CreditBalance: decimal.NewFromInt(999)}
	require.NoError(t, r.CreateCustomer(ctx, r.DB(ctx), c))
	assert.NotEqual(t, uuid.Nil, c.ID)

	got, err := r.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.CreditBalance.IsZero())

	ids, err := r.ListCustomerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID}, ids)
}

func TestTransactions_ListAndSum(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.SeedCustomer(t, db, "Carl", "100.00")
	other := testutil.SeedCustomer(t, db, "Dana", "5.00")
	r := NewRepository(db, nil, nil, must(logger.NewLogger()))
	ctx := context.Background()

	require.NoError(t, r.CreateTransaction(ctx, db, &model.CreditTransaction{
		CustomerID:   c.ID,
		Type:         model.TxPayment,
		Amount:       decimal.RequireFromString("-40.50"),
		BalanceAfter: decimal.RequireFromString("59.50"),
		Description:  "cash",
	}))

	sum, err := r.SumTransactions(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "59.50", sum.StringFixed(2))

	txs, err := r.ListTransactions(ctx, c.ID, 10, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, model.TxCharge, txs[0].Type)
	assert.Equal(t, model.TxPayment, txs[1].Type)

	recent, err := r.ListRecentTransactions(ctx, db, c.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, model.TxPayment, recent[0].Type)

	sum, err = r.SumTransactions(ctx, db, uuid.New())
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	sum, err = r.SumTransactions(ctx, db, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.00", sum.StringFixed(2))
}

func TestOutbox_PollPublishMark(t *testing.T) {
	db := testutil.NewDB(t)
	w := &fakeWriter{}
	r := NewRepository(db, nil, w, must(logger.NewLogger()))
	ctx := context.Background()
	customerID := uuid.New()

	for _, typ := range []string{model.EventChargeRecorded, model.EventPaymentRecorded} {
		require.NoError(t, r.CreateOutboxEvent(ctx, db, &model.OutboxEvent{
			Aggregate: "Customer", AggregateID: customerID, EventType: typ, Payload: `{"ok":true}`,
		}))
	}

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 2)

	require.NoError(t, r.PublishEvent(ctx, evts[0]))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, customerID.String(), string(w.msgs[0].Key))
	assert.Equal(t, `{"ok":true}`, string(w.msgs[0].Value))
	assert.Equal(t, model.EventChargeRecorded, string(w.msgs[0].Headers[0].Value))

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))
	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, model.EventPaymentRecorded, evts[0].EventType)
}

func TestPublishEvent_NoWriter(t *testing.T) {
	r := NewRepository(nil, nil, nil, must(logger.NewLogger()))
	err := r.PublishEvent(context.Background(), model.OutboxEvent{})
	assert.Error(t, err)
}

func TestBalanceCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	r := NewRepository(nil, rdb, nil, must(logger.NewLogger()))
	r.SetBalanceTTL(time.Minute)
	ctx := context.Background()
	id := uuid.New()
	key := "credit:balance:" + id.String()

	mock.ExpectEvalSha(cacheBalanceScript.Hash(), []string{key}, "3", "60.00", "60000").SetVal(int64(1))
	mock.ExpectGet(key).SetVal("3:60.00")
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).SetVal("60.00")

	require.NoError(t, r.CacheBalance(ctx, id, decimal.NewFromInt(60), 3))
	bal, err := r.GetCachedBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "60.00", bal.StringFixed(2))

	require.NoError(t, r.InvalidateBalance(ctx, id))
	_, err = r.GetCachedBalance(ctx, id)
	assert.True(t, errors.Is(err, redis.Nil))

	// values without a version are treated as a miss
	_, err = r.GetCachedBalance(ctx, id)
	assert.ErrorIs(t, err, redis.Nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_OlderVersionIgnored(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	r := NewRepository(nil, rdb, nil, must(logger.NewLogger()))
	r.SetBalanceTTL(time.Minute)
	ctx := context.Background()
	id := uuid.New()
	key := "credit:balance:" + id.String()

	// the script reports 0 when the stored version is not older
	mock.ExpectEvalSha(cacheBalanceScript.Hash(), []string{key}, "1", "100.00", "60000").SetVal(int64(0))

	require.NoError(t, r.CacheBalance(ctx, id, decimal.NewFromInt(100), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_NilClient(t *testing.T) {
	r := NewRepository(nil, nil, nil, must(logger.NewLogger()))
	ctx := context.Background()

	assert.NoError(t, r.CacheBalance(ctx, uuid.New(), decimal.NewFromInt(1), 1))
	assert.NoError(t, r.InvalidateBalance(ctx, uuid.New()))
	_, err := r.GetCachedBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, redis.Nil)
}
