package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-ledger-go/internal/ledger"
)

// decodeStrict rejects fields the target does not declare. gin only offers
// that as a process-wide switch, so settings updates decode on their own.
func decodeStrict(c *gin.Context, v any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type createAccountRequest struct {
	Name      string      `json:"name" binding:"required"`
	Type      string      `json:"type" binding:"required"`
	Balance   json.Number `json:"balance" binding:"required"`
	Currency  string      `json:"currency"`
	IsDefault bool        `json:"is_default"`
}

type accountSettingsRequest struct {
	Name         *string      `json:"name"`
	Type         *string      `json:"type"`
	Status       *string      `json:"status"`
	Currency     *string      `json:"currency"`
	InterestRate *json.Number `json:"interest_rate"`
}

func (r accountSettingsRequest) settings() ledger.AccountSettings {
	out := ledger.AccountSettings{Name: r.Name, Type: r.Type, Status: r.Status, Currency: r.Currency}
	if r.InterestRate != nil {
		v := r.InterestRate.String()
		out.InterestRate = &v
	}
	return out
}

// GET /v1/accounts
func (s *Server) listAccounts(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	accounts, err := s.ledger.ListAccounts(ctx, currentUser(c).ID)
	if err != nil {
		failRead(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// POST /v1/accounts
func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.ledger.CreateAccount(ctx, currentUser(c).ID, ledger.CreateAccountInput{
		Name:      req.Name,
		Type:      req.Type,
		Balance:   req.Balance.String(),
		Currency:  req.Currency,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, acct)
}

// GET /v1/accounts/:id
func (s *Server) getAccount(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.ledger.GetAccountWithTransactions(ctx, currentUser(c).ID, c.Param("id"))
	if err != nil {
		failRead(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acct})
}

// PATCH /v1/accounts/:id
func (s *Server) updateAccount(c *gin.Context) {
	var req accountSettingsRequest
	if err := decodeStrict(c, &req); err != nil {
		badRequest(c, "invalid_request: "+err.Error())
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.ledger.UpdateAccountSettings(ctx, currentUser(c).ID, c.Param("id"), req.settings())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, acct)
}

// PUT /v1/accounts/:id/default
func (s *Server) setDefaultAccount(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.ledger.SetDefaultAccount(ctx, currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, acct)
}

// DELETE /v1/accounts/:id
func (s *Server) deleteAccount(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	id := c.Param("id")
	if err := s.ledger.DeleteAccount(ctx, currentUser(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// GET /v1/accounts/:id/reconcile
func (s *Server) reconcileAccount(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	rec, err := s.ledger.Reconcile(ctx, currentUser(c).ID, c.Param("id"))
	if err != nil {
		failRead(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
