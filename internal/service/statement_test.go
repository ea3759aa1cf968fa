package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestStatement_ListsNewestRows(t *testing.T) {
	svc, db, ctx := newTestService(t)
	c := testutil.SeedCustomer(t, db, "Ana", "0")
	testutil.SeedCharges(t, db, c.ID, 520, "1.00")
	_, err := svc.RecordPayment(ctx, c.ID, dec("4.00"), "LATEST-PAYMENT", "")
	require.NoError(t, err)

	data, err := svc.Statement(ctx, c.ID, 500, time.Now())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Statement")
	require.NoError(t, err)
	// 5 header rows, brought forward, 500 rows, blank, outstanding
	require.Len(t, rows, 508)
	assert.Equal(t, "Brought forward", rows[5][0])
	assert.Equal(t, "Charge 22", rows[6][2])
	assert.Equal(t, "LATEST-PAYMENT", rows[505][2])
	assert.Equal(t, "Outstanding balance", rows[507][0])

	// brought forward 21 + 499 charges - 4 = 516
	opening, err := f.GetCellValue("Statement", "E6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "21", opening)
	total, err := f.GetCellValue("Statement", "E508", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "516", total)
}

func TestStatement_FullHistory(t *testing.T) {
	svc, db, ctx := newTestService(t)
	c := testutil.SeedCustomer(t, db, "Ana", "30.00")
	_, err := svc.RecordPayment(ctx, c.ID, dec("10.00"), "cash", "")
	require.NoError(t, err)

	data, err := svc.Statement(ctx, c.ID, MaxStatementRows, time.Now())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Statement")
	require.NoError(t, err)
	assert.Equal(t, "Opening balance", rows[5][2])
	assert.Equal(t, "cash", rows[6][2])
	for _, row := range rows {
		if len(row) > 0 {
			assert.NotEqual(t, "Brought forward", row[0])
		}
	}
}

func TestStatement_Validation(t *testing.T) {
	svc, db, ctx := newTestService(t)
	c := testutil.SeedCustomer(t, db, "Ana", "1.00")

	_, err := svc.Statement(ctx, c.ID, 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.Statement(ctx, c.ID, MaxStatementRows+1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.Statement(ctx, uuid.New(), 10, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
