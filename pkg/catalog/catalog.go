// Package catalog declares the fixed set of ERPNext actions the model may
// request. The parameter schemas are descriptive hints for the model, not
// enforced contracts; bad arguments surface as tool execution failures.
package catalog

// Tool describes one callable action: a unique name, a description the
// model uses to decide when to invoke it, and a JSON-Schema parameter map.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Lookup returns the tool with the given name, if declared.
func Lookup(name string) (Tool, bool) {
	for _, t := range Tools {
		if t.Name == name {
			return t, true
		}
	}

	return Tool{}, false
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// Tools is the action catalog handed to every provider adapter. Immutable
// for the process lifetime.
var Tools = []Tool{
	{
		Name:        "list_documents",
		Description: "List documents of a given ERPNext doctype (e.g. 'Sales Invoice', 'Purchase Invoice', 'Journal Entry', 'Payment Entry', 'Expense Claim', 'Account', 'Item', 'Customer', 'Supplier'). Returns a list of matching documents.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name, e.g. 'Sales Invoice'"),
			"fields": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Fields to return. Default: ['name']",
			},
			"filters": map[string]any{
				"type":        "object",
				"description": "Filters as {field: value} or {field: ['operator', value]}",
			},
			"order_by": str("Order by clause, e.g. 'creation desc'"),
			"limit":    integer("Max number of results (default 20)"),
		}, "doctype"),
	},
	{
		Name:        "get_document",
		Description: "Get the full details of a single ERPNext document by its doctype and name.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"name":    str("Document name/ID"),
		}, "doctype", "name"),
	},
	{
		Name:        "create_document",
		Description: "Create a new ERPNext document. Provide the doctype and the document data as a JSON object. Use proper ERPNext field names. For child tables (like items), use the appropriate child table field name.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"data": map[string]any{
				"type":        "object",
				"description": "Document data with field names as keys",
			},
		}, "doctype", "data"),
	},
	{
		Name:        "update_document",
		Description: "Update an existing ERPNext document.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"name":    str("Document name/ID"),
			"data": map[string]any{
				"type":        "object",
				"description": "Fields to update",
			},
		}, "doctype", "name", "data"),
	},
	{
		Name:        "delete_document",
		Description: "Delete an ERPNext document.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"name":    str("Document name/ID"),
		}, "doctype", "name"),
	},
	{
		Name:        "submit_document",
		Description: "Submit a draft ERPNext document (sets docstatus=1). Only for submittable doctypes like invoices, journal entries, etc.",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"name":    str("Document name/ID"),
		}, "doctype", "name"),
	},
	{
		Name:        "cancel_document",
		Description: "Cancel a submitted ERPNext document (sets docstatus=2).",
		Parameters: object(map[string]any{
			"doctype": str("ERPNext doctype name"),
			"name":    str("Document name/ID"),
		}, "doctype", "name"),
	},
	{
		Name:        "search_link",
		Description: "Search for a document by name (autocomplete-style). Useful to find accounts, items, customers, suppliers, etc. by partial name.",
		Parameters: object(map[string]any{
			"doctype": str("Doctype to search in"),
			"query":   str("Search text"),
		}, "doctype", "query"),
	},
	{
		Name:        "get_accounts",
		Description: "Get the Chart of Accounts. Optionally filter by company and/or root_type (Asset, Liability, Equity, Income, Expense).",
		Parameters: object(map[string]any{
			"company": str("Company name (optional)"),
			"root_type": map[string]any{
				"type":        "string",
				"description": "Root type filter: Asset, Liability, Equity, Income, or Expense",
				"enum":        []string{"Asset", "Liability", "Equity", "Income", "Expense"},
			},
		}),
	},
	{
		Name:        "get_companies",
		Description: "Get a list of all companies in ERPNext.",
		Parameters:  object(map[string]any{}),
	},
	{
		Name:        "get_customers",
		Description: "Get a list of customers.",
		Parameters: object(map[string]any{
			"limit": integer("Max results (default 50)"),
		}),
	},
	{
		Name:        "get_suppliers",
		Description: "Get a list of suppliers.",
		Parameters: object(map[string]any{
			"limit": integer("Max results (default 50)"),
		}),
	},
	{
		Name:        "get_items",
		Description: "Get a list of items.",
		Parameters: object(map[string]any{
			"limit": integer("Max results (default 50)"),
		}),
	},
	{
		Name:        "call_method",
		Description: "Call any whitelisted ERPNext/Frappe server method. Use this for reports, special actions, or any API endpoint not covered by other tools.",
		Parameters: object(map[string]any{
			"method": str("Dotted method path, e.g. 'erpnext.accounts.utils.get_balance_on'"),
			"args": map[string]any{
				"type":        "object",
				"description": "Keyword arguments for the method",
			},
		}, "method"),
	},
}
