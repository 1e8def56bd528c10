package http

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/budget"
	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/money"
)

type MonthlyHealth struct {
	Income      decimal.Decimal `json:"income"`
	Spent       decimal.Decimal `json:"spent"`
	Savings     decimal.Decimal `json:"savings"`
	SavingsRate decimal.Decimal `json:"savings_rate"` // percent of income
}

type CategoryBreakdown struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Change     decimal.Decimal `json:"change"` // vs last month, percent
}

type AccountSpending struct {
	AccountID  string          `json:"account_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

type ReviewItem struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Title string `json:"title"`
}

type InsightsResponse struct {
	Month             string              `json:"month"`
	MonthlyHealth     MonthlyHealth       `json:"monthly_health"`
	CategoryBreakdown []CategoryBreakdown `json:"category_breakdown"`
	AccountSpending   []AccountSpending   `json:"account_spending"`
	ReviewItems       []ReviewItem        `json:"review_items"`
}

var hundred = decimal.NewFromInt(100)

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(1)
}

// GET /v1/insights?month=2024-03
func (s *Server) getInsights(c *gin.Context) {
	now := time.Now().In(s.loc)
	if m := c.Query("month"); m != "" {
		t, err := time.ParseInLocation("2006-01", m, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
			return
		}
		now = t
	}
	thisStart, thisEnd := budget.MonthWindow(now, s.loc)
	lastStart, _ := budget.MonthWindow(thisStart.AddDate(0, 0, -1), s.loc)

	ctx, cancel := s.requestContext(c)
	defer cancel()
	user := currentUser(c)

	txns, err := s.ledger.ListTransactionsBetween(ctx, user.ID, lastStart, thisEnd)
	if err != nil {
		failRead(c, err)
		return
	}
	accounts, err := s.ledger.ListAccounts(ctx, user.ID)
	if err != nil {
		failRead(c, err)
		return
	}
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	res := InsightsResponse{
		Month:             thisStart.Format("2006-01"),
		CategoryBreakdown: []CategoryBreakdown{},
		AccountSpending:   []AccountSpending{},
		ReviewItems:       []ReviewItem{},
	}

	var income, spent decimal.Decimal
	categoryThis := map[string]decimal.Decimal{}
	categoryLast := map[string]decimal.Decimal{}
	accountSpend := map[string]decimal.Decimal{}
	uncategorized := 0

	for _, t := range txns {
		switch {
		case !t.Date.Before(thisStart) && t.Date.Before(thisEnd):
			if t.Type == models.TransactionTypeIncome {
				income = income.Add(t.Amount)
				continue
			}
			spent = spent.Add(t.Amount)
			categoryThis[categoryKey(t.Category)] = categoryThis[categoryKey(t.Category)].Add(t.Amount)
			accountSpend[t.AccountID] = accountSpend[t.AccountID].Add(t.Amount)
			if categoryKey(t.Category) == "uncategorized" {
				uncategorized++
			}
		case !t.Date.Before(lastStart) && t.Date.Before(thisStart):
			if t.Type == models.TransactionTypeExpense {
				categoryLast[categoryKey(t.Category)] = categoryLast[categoryKey(t.Category)].Add(t.Amount)
			}
		}
	}

	res.MonthlyHealth = MonthlyHealth{
		Income:      income.Round(money.Scale),
		Spent:       spent.Round(money.Scale),
		Savings:     income.Sub(spent).Round(money.Scale),
		SavingsRate: decimal.Max(decimal.Zero, percentOf(income.Sub(spent), income)),
	}

	for cat, amt := range categoryThis {
		change := decimal.Zero
		if last := categoryLast[cat]; last.IsPositive() {
			change = percentOf(amt.Sub(last), last)
		}
		res.CategoryBreakdown = append(res.CategoryBreakdown, CategoryBreakdown{
			Category:   cat,
			Amount:     amt.Round(money.Scale),
			Percentage: percentOf(amt, spent),
			Change:     change,
		})
	}
	sort.Slice(res.CategoryBreakdown, func(i, j int) bool {
		a, b := res.CategoryBreakdown[i], res.CategoryBreakdown[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})

	for id, amt := range accountSpend {
		res.AccountSpending = append(res.AccountSpending, AccountSpending{
			AccountID:  id,
			Name:       names[id],
			Amount:     amt.Round(money.Scale),
			Percentage: percentOf(amt, spent),
		})
	}
	sort.Slice(res.AccountSpending, func(i, j int) bool {
		return res.AccountSpending[i].Amount.GreaterThan(res.AccountSpending[j].Amount)
	})

	if uncategorized > 0 {
		res.ReviewItems = append(res.ReviewItems, ReviewItem{
			Type:  "uncategorized",
			Count: uncategorized,
			Title: "Uncategorized Transactions",
		})
	}

	c.JSON(http.StatusOK, res)
}

func categoryKey(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" || c == "other" || c == "other-expense" {
		return "uncategorized"
	}
	return c
}
