package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finance-ledger-go/internal/ai"
	"finance-ledger-go/internal/budget"
	"finance-ledger-go/internal/config"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

// Identity verifies bearer credentials and provisions first-time users.
type Identity interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
	Provision(ctx context.Context, credential string) (*models.User, bool, error)
}

type Deps struct {
	Ledger   *ledger.Service
	Budget   *budget.Service
	Identity Identity
	Scanner  ai.ReceiptScanner
}

type Server struct {
	cfg     *config.Config
	ledger  *ledger.Service
	budget  *budget.Service
	ident   Identity
	scanner ai.ReceiptScanner
	loc     *time.Location
}

func NewServer(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(cfg))
	r.Use(logging())

	s := &Server{
		cfg:     cfg,
		ledger:  deps.Ledger,
		budget:  deps.Budget,
		ident:   deps.Identity,
		scanner: deps.Scanner,
		loc:     loadLocation(cfg.TZDefault),
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.POST("/v1/users/sync", s.syncUser)

	authorized := r.Group("/v1")
	authorized.Use(AuthMiddleware(deps.Identity))
	authorized.Use(rateLimit(newLimiters(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	{
		authorized.GET("/accounts", s.listAccounts)
		authorized.POST("/accounts", s.createAccount)
		authorized.GET("/accounts/:id", s.getAccount)
		authorized.PATCH("/accounts/:id", s.updateAccount)
		authorized.PUT("/accounts/:id/default", s.setDefaultAccount)
		authorized.DELETE("/accounts/:id", s.deleteAccount)
		authorized.GET("/accounts/:id/reconcile", s.reconcileAccount)
		authorized.GET("/accounts/:id/budget", s.getBudget)
		authorized.POST("/accounts/:id/budget/alert", s.checkBudgetAlert)
		authorized.PUT("/budget", s.updateBudget)

		authorized.GET("/transactions", s.listTransactions)
		authorized.POST("/transactions", s.createTransaction)
		authorized.DELETE("/transactions/:id", s.deleteTransaction)
		authorized.POST("/transactions/bulk-delete", s.bulkDeleteTransactions)

		authorized.POST("/receipts/scan", s.scanReceipt)
		authorized.GET("/insights", s.getInsights)
	}
	return r
}

// requestContext bounds a handler's store and upstream calls.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(s.cfg.ReqTimeoutSec)*time.Second)
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet("user").(*models.User)
}

func cors(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.AllowOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func loadLocation(name string) *time.Location {
	if strings.TrimSpace(name) == "" {
		name = "Asia/Kolkata"
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}

// parseDate accepts RFC 3339 timestamps or bare dates, which are taken as
// midnight in the server's zone.
func (s *Server) parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", v, s.loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
