package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /v1/accounts/:id/budget
func (s *Server) getBudget(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	sum, err := s.budget.GetCurrentBudget(ctx, currentUser(c).ID, c.Param("id"))
	if err != nil {
		failRead(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// PUT /v1/budget
func (s *Server) updateBudget(c *gin.Context) {
	var req struct {
		Amount json.Number `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	b, err := s.budget.UpdateBudget(ctx, currentUser(c).ID, req.Amount.String())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// POST /v1/accounts/:id/budget/alert
func (s *Server) checkBudgetAlert(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.budget.CheckAlert(ctx, currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
