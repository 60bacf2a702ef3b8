package erpnext

import (
	"context"
	"encoding/json"
)

// Context is a point-in-time snapshot of an ERPNext instance, fetched once
// per conversation and rendered into the agent's system instructions.
type Context struct {
	Companies              []Company             `json:"companies"`
	FiscalYears            []FiscalYear          `json:"fiscal_years"`
	Accounts               []Account             `json:"accounts"`
	CostCenters            []CostCenter          `json:"cost_centers"`
	Customers              []Customer            `json:"customers"`
	Suppliers              []Supplier            `json:"suppliers"`
	Items                  []Item                `json:"items"`
	RecentSalesInvoices    []InvoiceSummary      `json:"recent_sales_invoices"`
	RecentPurchaseInvoices []InvoiceSummary      `json:"recent_purchase_invoices"`
	RecentJournalEntries   []JournalEntrySummary `json:"recent_journal_entries"`
	ModesOfPayment         []ModeOfPayment       `json:"modes_of_payment"`
}

type Company struct {
	Name            string `json:"name"`
	CompanyName     string `json:"company_name"`
	DefaultCurrency string `json:"default_currency"`
	Country         string `json:"country"`
}

type FiscalYear struct {
	Name          string `json:"name"`
	YearStartDate string `json:"year_start_date"`
	YearEndDate   string `json:"year_end_date"`
}

type Account struct {
	Name          string `json:"name"`
	AccountName   string `json:"account_name"`
	RootType      string `json:"root_type"`
	AccountType   string `json:"account_type"`
	ParentAccount string `json:"parent_account"`
	IsGroup       int    `json:"is_group"`
}

type CostCenter struct {
	Name             string `json:"name"`
	CostCenterName   string `json:"cost_center_name"`
	ParentCostCenter string `json:"parent_cost_center"`
	IsGroup          int    `json:"is_group"`
}

type Customer struct {
	Name          string `json:"name"`
	CustomerName  string `json:"customer_name"`
	CustomerGroup string `json:"customer_group"`
	Territory     string `json:"territory"`
}

type Supplier struct {
	Name          string `json:"name"`
	SupplierName  string `json:"supplier_name"`
	SupplierGroup string `json:"supplier_group"`
	Country       string `json:"country"`
}

type Item struct {
	Name         string  `json:"name"`
	ItemName     string  `json:"item_name"`
	ItemGroup    string  `json:"item_group"`
	StockUOM     string  `json:"stock_uom"`
	StandardRate float64 `json:"standard_rate"`
}

// InvoiceSummary covers both sales invoices (Customer set) and purchase
// invoices (Supplier set).
type InvoiceSummary struct {
	Name        string  `json:"name"`
	Customer    string  `json:"customer,omitempty"`
	Supplier    string  `json:"supplier,omitempty"`
	GrandTotal  float64 `json:"grand_total"`
	Status      string  `json:"status"`
	PostingDate string  `json:"posting_date"`
}

type JournalEntrySummary struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	TotalDebit  float64 `json:"total_debit"`
	PostingDate string  `json:"posting_date"`
	VoucherType string  `json:"voucher_type"`
}

type ModeOfPayment struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

var accountFields = []string{"name", "account_name", "root_type", "account_type", "parent_account", "is_group"}

// Accounts lists the Chart of Accounts, optionally filtered by company
// and/or root type (Asset, Liability, Equity, Income, Expense).
func (c *Client) Accounts(ctx context.Context, company, rootType string) (Envelope, error) {
	filters := map[string]any{}

	if company != "" {
		filters["company"] = company
	}

	if rootType != "" {
		filters["root_type"] = rootType
	}

	return c.List(ctx, "Account", ListOptions{
		Fields:  accountFields,
		Filters: filters,
		Limit:   200,
	})
}

// CostCenters lists cost centers, optionally filtered by company.
func (c *Client) CostCenters(ctx context.Context, company string) (Envelope, error) {
	filters := map[string]any{}

	if company != "" {
		filters["company"] = company
	}

	return c.List(ctx, "Cost Center", ListOptions{
		Fields:  []string{"name", "cost_center_name", "parent_cost_center", "is_group"},
		Filters: filters,
		Limit:   100,
	})
}

// Companies lists all companies.
func (c *Client) Companies(ctx context.Context) (Envelope, error) {
	return c.List(ctx, "Company", ListOptions{
		Fields: []string{"name", "company_name", "default_currency", "country"},
		Limit:  100,
	})
}

// Customers lists customers, at most limit (default 50).
func (c *Client) Customers(ctx context.Context, limit int) (Envelope, error) {
	if limit <= 0 {
		limit = 50
	}

	return c.List(ctx, "Customer", ListOptions{
		Fields: []string{"name", "customer_name", "customer_group", "territory"},
		Limit:  limit,
	})
}

// Suppliers lists suppliers, at most limit (default 50).
func (c *Client) Suppliers(ctx context.Context, limit int) (Envelope, error) {
	if limit <= 0 {
		limit = 50
	}

	return c.List(ctx, "Supplier", ListOptions{
		Fields: []string{"name", "supplier_name", "supplier_group", "country"},
		Limit:  limit,
	})
}

// Items lists items, at most limit (default 50).
func (c *Client) Items(ctx context.Context, limit int) (Envelope, error) {
	if limit <= 0 {
		limit = 50
	}

	return c.List(ctx, "Item", ListOptions{
		Fields: []string{"name", "item_name", "item_group", "stock_uom", "standard_rate"},
		Limit:  limit,
	})
}

// BalanceSheet runs the balance sheet report.
func (c *Client) BalanceSheet(ctx context.Context, fiscalYear, company string) (Envelope, error) {
	kwargs := map[string]any{}

	if fiscalYear != "" {
		kwargs["fiscal_year"] = fiscalYear
	}

	if company != "" {
		kwargs["company"] = company
	}

	return c.CallMethod(ctx, "erpnext.accounts.report.balance_sheet.balance_sheet.execute", kwargs)
}

// ProfitAndLoss runs the profit and loss statement report.
func (c *Client) ProfitAndLoss(ctx context.Context, fiscalYear, company string) (Envelope, error) {
	kwargs := map[string]any{}

	if fiscalYear != "" {
		kwargs["fiscal_year"] = fiscalYear
	}

	if company != "" {
		kwargs["company"] = company
	}

	return c.CallMethod(ctx, "erpnext.accounts.report.profit_and_loss_statement.profit_and_loss_statement.execute", kwargs)
}

// GeneralLedgerOptions narrows a GeneralLedger report call.
type GeneralLedgerOptions struct {
	Account  string
	FromDate string
	ToDate   string
	Company  string
	Limit    int
}

// GeneralLedger runs the general ledger report.
func (c *Client) GeneralLedger(ctx context.Context, opts GeneralLedgerOptions) (Envelope, error) {
	limit := opts.Limit

	if limit <= 0 {
		limit = 50
	}

	kwargs := map[string]any{"limit_page_length": limit}

	if opts.Account != "" {
		kwargs["account"] = opts.Account
	}

	if opts.FromDate != "" {
		kwargs["from_date"] = opts.FromDate
	}

	if opts.ToDate != "" {
		kwargs["to_date"] = opts.ToDate
	}

	if opts.Company != "" {
		kwargs["company"] = opts.Company
	}

	return c.CallMethod(ctx, "erpnext.accounts.report.general_ledger.general_ledger.execute", kwargs)
}

// FetchContext assembles the context snapshot. Every section is fetched
// independently; a failed sub-query leaves that section empty and does not
// abort the others, so the agent always gets as much context as is
// obtainable.
func (c *Client) FetchContext(ctx context.Context) *Context {
	snapshot := &Context{}

	snapshot.Companies = section[Company](c.Companies(ctx))

	snapshot.FiscalYears = section[FiscalYear](c.List(ctx, "Fiscal Year", ListOptions{
		Fields:  []string{"name", "year_start_date", "year_end_date"},
		OrderBy: "year_start_date desc",
		Limit:   5,
	}))

	snapshot.Accounts = section[Account](c.List(ctx, "Account", ListOptions{
		Fields:  accountFields,
		Filters: map[string]any{"is_group": 0},
		Limit:   200,
	}))

	snapshot.CostCenters = section[CostCenter](c.CostCenters(ctx, ""))
	snapshot.Customers = section[Customer](c.Customers(ctx, 30))
	snapshot.Suppliers = section[Supplier](c.Suppliers(ctx, 30))
	snapshot.Items = section[Item](c.Items(ctx, 30))

	snapshot.RecentSalesInvoices = section[InvoiceSummary](c.List(ctx, "Sales Invoice", ListOptions{
		Fields:  []string{"name", "customer", "grand_total", "status", "posting_date"},
		OrderBy: "posting_date desc",
		Limit:   10,
	}))

	snapshot.RecentPurchaseInvoices = section[InvoiceSummary](c.List(ctx, "Purchase Invoice", ListOptions{
		Fields:  []string{"name", "supplier", "grand_total", "status", "posting_date"},
		OrderBy: "posting_date desc",
		Limit:   10,
	}))

	snapshot.RecentJournalEntries = section[JournalEntrySummary](c.List(ctx, "Journal Entry", ListOptions{
		Fields:  []string{"name", "title", "total_debit", "posting_date", "voucher_type"},
		OrderBy: "posting_date desc",
		Limit:   10,
	}))

	snapshot.ModesOfPayment = section[ModeOfPayment](c.List(ctx, "Mode of Payment", ListOptions{
		Fields: []string{"name", "type"},
		Limit:  20,
	}))

	return snapshot
}

// section decodes a list envelope into typed rows; errors and failure
// envelopes collapse to nil so a bad section never poisons the snapshot.
func section[T any](env Envelope, err error) []T {
	if err != nil || !env.Success || env.Data == nil {
		return nil
	}

	raw, err := json.Marshal(env.Data)

	if err != nil {
		return nil
	}

	var rows []T

	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}

	return rows
}
