package email

import (
	"bytes"
	"html/template"
)

type BudgetAlert struct {
	Name           string
	AccountName    string
	BudgetAmount   string
	TotalExpenses  string
	PercentageUsed string
	Remaining      string
}

var budgetAlertTmpl = template.Must(template.New("budget_alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; background: #f6f9fc; padding: 24px;">
  <h1>Budget Alert</h1>
  <p>Hello {{.Name}},</p>
  <p>You've used {{.PercentageUsed}}% of your monthly budget on <strong>{{.AccountName}}</strong>.</p>
  <table>
    <tr><td>Budget</td><td>{{.BudgetAmount}}</td></tr>
    <tr><td>Spent so far</td><td>{{.TotalExpenses}}</td></tr>
    <tr><td>Remaining</td><td>{{.Remaining}}</td></tr>
  </table>
</body>
</html>
`))

func RenderBudgetAlert(data BudgetAlert) (string, error) {
	var buf bytes.Buffer
	if err := budgetAlertTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
