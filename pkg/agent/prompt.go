package agent

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/adrianliechti/bookman/pkg/erpnext"
)

//go:embed instructions.txt
var instructionsTemplate string

var instructions = template.Must(template.New("instructions").Parse(instructionsTemplate))

func renderInstructions(today time.Time, contextText string) string {
	var out strings.Builder

	instructions.Execute(&out, map[string]string{
		"Today":   today.Format("2006-01-02"),
		"Context": contextText,
	})

	return out.String()
}

// formatContext turns the snapshot into readable markdown for the system
// instructions.
func formatContext(ctx *erpnext.Context) string {
	var sections []string

	if len(ctx.Companies) > 0 {
		var lines []string

		for _, c := range ctx.Companies {
			name := c.Name

			if name == "" {
				name = c.CompanyName
			}

			lines = append(lines, fmt.Sprintf("- **%s** (currency: %s, country: %s)", name, c.DefaultCurrency, c.Country))
		}

		sections = append(sections, "### Companies\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.FiscalYears) > 0 {
		var lines []string

		for _, fy := range ctx.FiscalYears {
			lines = append(lines, fmt.Sprintf("- %s: %s → %s", fy.Name, fy.YearStartDate, fy.YearEndDate))
		}

		sections = append(sections, "### Fiscal Years\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.Accounts) > 0 {
		sections = append(sections, formatAccounts(ctx.Accounts))
	}

	if len(ctx.CostCenters) > 0 {
		var lines []string

		for _, c := range ctx.CostCenters {
			if c.IsGroup != 0 {
				continue
			}

			lines = append(lines, "- "+c.Name)
		}

		if len(lines) > 0 {
			sections = append(sections, "### Cost Centers\n"+strings.Join(lines, "\n"))
		}
	}

	if len(ctx.ModesOfPayment) > 0 {
		var lines []string

		for _, m := range ctx.ModesOfPayment {
			lines = append(lines, fmt.Sprintf("- %s (type: %s)", m.Name, m.Type))
		}

		sections = append(sections, "### Modes of Payment\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.Customers) > 0 {
		var lines []string

		for _, c := range ctx.Customers {
			lines = append(lines, fmt.Sprintf("- %s — %s", c.Name, c.CustomerName))
		}

		sections = append(sections, "### Customers\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.Suppliers) > 0 {
		var lines []string

		for _, s := range ctx.Suppliers {
			lines = append(lines, fmt.Sprintf("- %s — %s", s.Name, s.SupplierName))
		}

		sections = append(sections, "### Suppliers\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.Items) > 0 {
		var lines []string

		for _, it := range ctx.Items {
			line := fmt.Sprintf("- %s — %s", it.Name, it.ItemName)

			if it.StandardRate != 0 {
				line += fmt.Sprintf(" @ %g", it.StandardRate)
			}

			lines = append(lines, line)
		}

		sections = append(sections, "### Items\n"+strings.Join(lines, "\n"))
	}

	if len(ctx.RecentSalesInvoices) > 0 {
		sections = append(sections, "### Recent Sales Invoices\n"+formatInvoices(ctx.RecentSalesInvoices))
	}

	if len(ctx.RecentPurchaseInvoices) > 0 {
		sections = append(sections, "### Recent Purchase Invoices\n"+formatInvoices(ctx.RecentPurchaseInvoices))
	}

	if len(ctx.RecentJournalEntries) > 0 {
		var lines []string

		for _, d := range ctx.RecentJournalEntries {
			parts := []string{d.Name}

			if d.Title != "" {
				parts = append(parts, d.Title)
			}

			parts = append(parts, fmt.Sprintf("%g", d.TotalDebit))

			if d.PostingDate != "" {
				parts = append(parts, d.PostingDate)
			}

			lines = append(lines, "- "+strings.Join(parts, " | "))
		}

		sections = append(sections, "### Recent Journal Entries\n"+strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return "(Could not fetch ERPNext context — the AI will query as needed.)"
	}

	return strings.Join(sections, "\n\n")
}

var rootTypeOrder = []string{"Asset", "Liability", "Equity", "Income", "Expense", "Other"}

// formatAccounts groups leaf accounts by root type for readability.
func formatAccounts(accounts []erpnext.Account) string {
	byRoot := map[string][]erpnext.Account{}

	for _, a := range accounts {
		rt := a.RootType

		if rt == "" {
			rt = "Other"
		}

		byRoot[rt] = append(byRoot[rt], a)
	}

	var lines []string

	for _, rt := range rootTypeOrder {
		group := byRoot[rt]

		if len(group) == 0 {
			continue
		}

		lines = append(lines, fmt.Sprintf("\n**%s:**", rt))

		for _, a := range group {
			line := "- " + a.Name

			if a.AccountType != "" {
				line += fmt.Sprintf(" (%s)", a.AccountType)
			}

			lines = append(lines, line)
		}
	}

	return "### Chart of Accounts (leaf accounts)" + strings.Join(lines, "\n")
}

func formatInvoices(invoices []erpnext.InvoiceSummary) string {
	var lines []string

	for _, d := range invoices {
		parts := []string{d.Name}

		if d.Customer != "" {
			parts = append(parts, d.Customer)
		}

		if d.Supplier != "" {
			parts = append(parts, d.Supplier)
		}

		parts = append(parts, fmt.Sprintf("%g", d.GrandTotal))

		if d.Status != "" {
			parts = append(parts, "["+d.Status+"]")
		}

		if d.PostingDate != "" {
			parts = append(parts, d.PostingDate)
		}

		lines = append(lines, "- "+strings.Join(parts, " | "))
	}

	return strings.Join(lines, "\n")
}
