package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditLedger is what the handlers need from the ledger service.
type CreditLedger interface {
	RecordPayment(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error)
	RecordCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, id uuid.UUID, limit int, since time.Time) ([]model.CreditTransaction, error)
	Statement(ctx context.Context, id uuid.UUID, limit int, generatedAt time.Time) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func RegisterHandlers(rg *gin.RouterGroup, svc CreditLedger, log *zap.SugaredLogger) {
	customers := rg.Group("/customers/:id")
	{
		customers.GET("", customerHandler(svc))
		customers.GET("/credit/balance", balanceHandler(svc))
		customers.POST("/credit/payments", paymentHandler(svc))
		customers.POST("/credit/charges", chargeHandler(svc))
		customers.GET("/credit/transactions", historyHandler(svc))
		customers.GET("/credit/statement.xlsx", statementHandler(svc, log))
	}
}

type creditReq struct {
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"max=255"`
}

// customerID parses the :id path parameter. An id that cannot be parsed
// cannot name a customer, so it is reported as not found.
func customerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("%w: %q", service.ErrNotFound, c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func bindCredit(c *gin.Context) (*creditReq, bool) {
	var req creditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err))
		return nil, false
	}
	return &req, true
}

type ledgerWrite func(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error)

func creditHandler(write ledgerWrite) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerID(c)
		if !ok {
			return
		}
		req, ok := bindCredit(c)
		if !ok {
			return
		}
		cust, err := write(c.Request.Context(), id, *req.Amount, req.Description, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCustomerResponse(cust))
	}
}

func paymentHandler(svc CreditLedger) gin.HandlerFunc {
	return creditHandler(svc.RecordPayment)
}

func chargeHandler(svc CreditLedger) gin.HandlerFunc {
	return creditHandler(svc.RecordCharge)
}

func customerHandler(svc CreditLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerID(c)
		if !ok {
			return
		}
		cust, err := svc.GetCustomer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCustomerResponse(cust))
	}
}

func balanceHandler(svc CreditLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerID(c)
		if !ok {
			return
		}
		bal, err := svc.GetBalance(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer_id": id, "credit_balance": bal.StringFixed(2)})
	}
}

func historyHandler(svc CreditLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerID(c)
		if !ok {
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid limit", service.ErrInvalidArgument))
			return
		}
		since := time.Time{}
		if s := c.Query("since"); s != "" {
			since, err = time.Parse(time.RFC3339, s)
			if err != nil {
				respondError(c, fmt.Errorf("%w: invalid since", service.ErrInvalidArgument))
				return
			}
		}
		txs, err := svc.History(c.Request.Context(), id, limit, since)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTransactionResponses(txs))
	}
}

func statementHandler(svc CreditLedger, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerID(c)
		if !ok {
			return
		}
		data, err := svc.Statement(c.Request.Context(), id, service.MaxStatementRows, time.Now())
		if err != nil {
			if status, _ := statusFor(err); status == http.StatusInternalServerError {
				log.Errorw("statement failed", "customer_id", id, "error", err)
			}
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=credit-statement-%s.xlsx", id))
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}
