package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// POST /v1/users/sync
//
// Called after every sign-in. Creates the internal user row for the token's
// subject if it does not exist yet.
func (s *Server) syncUser(c *gin.Context) {
	token, found := bearer(c)
	if !found {
		c.JSON(401, gin.H{"success": false, "error": "authorization_header_invalid"})
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	user, created, err := s.ident.Provision(ctx, token)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, user)
}
