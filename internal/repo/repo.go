package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when the customer row changed between the
// locked read and the balance update.
var ErrVersionConflict = errors.New("optimistic lock conflict")

// EventWriter is the part of *kafka.Writer the repository needs.
type EventWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RepositoryInterface restricts Repo methods so services can be tested against fakes.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateCustomer(ctx context.Context, tx *gorm.DB, c *model.Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	GetCustomerForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Customer, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.CreditTransaction) error
	ListTransactions(ctx context.Context, customerID uuid.UUID, limit int, since time.Time) ([]model.CreditTransaction, error)
	ListRecentTransactions(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, limit int) ([]model.CreditTransaction, error)
	SumTransactions(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (decimal.Decimal, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, customerID uuid.UUID, bal decimal.Decimal, version uint64) error
	GetCachedBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	InvalidateBalance(ctx context.Context, customerID uuid.UUID) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db         *gorm.DB
	rdb        *redis.Client
	writer     EventWriter
	log        *zap.SugaredLogger
	balanceTTL time.Duration
}

// NewRepository constructs repo. rdb and w may be nil for processes that
// neither cache nor publish.
func NewRepository(db *gorm.DB, rdb *redis.Client, w EventWriter, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger, balanceTTL: 5 * time.Minute}
}

// SetBalanceTTL changes how long cached balances live.
func (r *Repository) SetBalanceTTL(ttl time.Duration) {
	if ttl > 0 {
		r.balanceTTL = ttl
	}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateCustomer inserts a customer with a zero balance.
func (r *Repository) CreateCustomer(ctx context.Context, tx *gorm.DB, c *model.Customer) error {
	c.CreditBalance = decimal.Zero
	return tx.WithContext(ctx).Create(c).Error
}

// GetCustomer is a plain point lookup.
func (r *Repository) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerForUpdate locks the customer row.
func (r *Repository) GetCustomerForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateBalance with optimistic lock.
func (r *Repository) UpdateBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ? AND version = ?", id, oldVersion).
		Updates(map[string]interface{}{
			"credit_balance": newBalance,
			"version":        oldVersion + 1,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListCustomerIDs returns every customer id, used by reconciliation.
func (r *Repository) ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Order("created_at").Pluck("id", &ids).Error
	return ids, err
}

// CreateTransaction inserts a ledger row.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.CreditTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// ListTransactions returns a customer's ledger rows since the given time, oldest first.
func (r *Repository) ListTransactions(ctx context.Context, customerID uuid.UUID, limit int, since time.Time) ([]model.CreditTransaction, error) {
	var txs []model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND created_at >= ?", customerID, since).
		Order("created_at asc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// ListRecentTransactions returns a customer's newest ledger rows, newest first.
func (r *Repository) ListRecentTransactions(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, limit int) ([]model.CreditTransaction, error) {
	var txs []model.CreditTransaction
	err := tx.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// SumTransactions adds up every amount in the customer's ledger.
func (r *Repository) SumTransactions(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Select("SUM(amount)").
		Where("customer_id = ?", customerID).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
