package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finance-ledger-go/internal/ledger"
)

type createTransactionRequest struct {
	AccountID         string      `json:"account_id" binding:"required"`
	Type              string      `json:"type" binding:"required"`
	Amount            json.Number `json:"amount" binding:"required"`
	Date              string      `json:"date"`
	Category          string      `json:"category"`
	Description       string      `json:"description"`
	ReceiptURL        string      `json:"receipt_url"`
	IsRecurring       bool        `json:"is_recurring"`
	RecurringInterval string      `json:"recurring_interval"`
}

// GET /v1/transactions
func (s *Server) listTransactions(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	txns, err := s.ledger.ListTransactions(ctx, currentUser(c).ID)
	if err != nil {
		failRead(c, err)
		return
	}
	if accountID := c.Query("account_id"); accountID != "" {
		filtered := txns[:0]
		for _, t := range txns {
			if t.AccountID == accountID {
				filtered = append(filtered, t)
			}
		}
		txns = filtered
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// POST /v1/transactions
func (s *Server) createTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	var date time.Time
	if req.Date != "" {
		d, parsed := s.parseDate(req.Date)
		if !parsed {
			badRequest(c, "invalid_date")
			return
		}
		date = d
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	txn, err := s.ledger.CreateTransaction(ctx, currentUser(c).ID, ledger.CreateTransactionInput{
		AccountID:         req.AccountID,
		Type:              req.Type,
		Amount:            req.Amount.String(),
		Date:              date,
		Category:          req.Category,
		Description:       req.Description,
		ReceiptURL:        req.ReceiptURL,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: req.RecurringInterval,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, txn)
}

// DELETE /v1/transactions/:id
func (s *Server) deleteTransaction(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	id := c.Param("id")
	if err := s.ledger.DeleteTransaction(ctx, currentUser(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// POST /v1/transactions/bulk-delete
func (s *Server) bulkDeleteTransactions(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.ledger.BulkDeleteTransactions(ctx, currentUser(c).ID, req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
