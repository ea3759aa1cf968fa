package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/service"
)

type customerResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	CreditBalance string    `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		ID:            c.ID.String(),
		Name:          c.Name,
		Phone:         c.Phone,
		CreditBalance: c.CreditBalance.StringFixed(2),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type transactionResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedBy    *string   `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTransactionResponses(txs []model.CreditTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:           t.ID.String(),
			Type:         string(t.Type),
			Amount:       t.Amount.StringFixed(2),
			BalanceAfter: t.BalanceAfter.StringFixed(2),
			Description:  t.Description,
			CreatedBy:    t.CreatedBy,
			CreatedAt:    t.CreatedAt,
		})
	}
	return out
}

// statusFor maps the ledger error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, service.ErrOverpaymentRejected):
		return http.StatusBadRequest, "OVERPAYMENT_REJECTED"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "STORAGE_FAILURE"
	}
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, gin.H{"error": msg, "code": code, "correlation_id": correlationID(c)}
}

func respondError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}
