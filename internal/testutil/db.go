// Package testutil opens throwaway in-memory databases for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
// The pool is capped at one connection, so transactions run one at a time
// the way row locks serialize them on Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// SeedCustomer inserts a customer whose balance is backed by one opening
// CHARGE row, so the ledger sums to the balance.
func SeedCustomer(t *testing.T, db *gorm.DB, name, balance string) *model.Customer {
	t.Helper()
	bal := decimal.RequireFromString(balance)
	c := &model.Customer{Name: name, CreditBalance: bal}
	require.NoError(t, db.Create(c).Error)
	if bal.IsPositive() {
		require.NoError(t, db.Create(&model.CreditTransaction{
			CustomerID:   c.ID,
			Type:         model.TxCharge,
			Amount:       bal,
			BalanceAfter: bal,
			Description:  "Opening balance",
		}).Error)
	}
	return c
}

// CountTransactions counts ledger rows for a customer.
func CountTransactions(t *testing.T, db *gorm.DB, customerID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.CreditTransaction{}).Where("customer_id = ?", customerID).Count(&n).Error)
	return n
}

// ReloadCustomer reads the customer straight from the database.
func ReloadCustomer(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Customer {
	t.Helper()
	var c model.Customer
	require.NoError(t, db.Where("id = ?", id).First(&c).Error)
	return &c
}

// SeedCharges appends n backdated CHARGE rows of amount, one second apart and
// ending an hour ago, and moves the balance with them. Use it on a customer
// seeded at zero so the rows stay in ledger order.
func SeedCharges(t *testing.T, db *gorm.DB, customerID uuid.UUID, n int, amount string) *model.Customer {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	bal := ReloadCustomer(t, db, customerID).CreditBalance
	start := time.Now().Add(-time.Hour - time.Duration(n)*time.Second)

	rows := make([]model.CreditTransaction, 0, n)
	for i := 0; i < n; i++ {
		bal = bal.Add(amt)
		rows = append(rows, model.CreditTransaction{
			CustomerID:   customerID,
			Type:         model.TxCharge,
			Amount:       amt,
			BalanceAfter: bal,
			Description:  fmt.Sprintf("Charge %d", i+1),
			CreatedAt:    start.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, db.CreateInBatches(rows, 100).Error)
	require.NoError(t, db.Model(&model.Customer{}).Where("id = ?", customerID).Update("credit_balance", bal).Error)
	return ReloadCustomer(t, db, customerID)
}
