package agent

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adrianliechti/bookman/pkg/erpnext"
)

var toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bookman_tool_executions_total",
	Help: "Tool executions dispatched to ERPNext, by action and outcome.",
}, []string{"tool", "outcome"})

type listArgs struct {
	Doctype string   `mapstructure:"doctype"`
	Fields  []string `mapstructure:"fields"`
	Filters any      `mapstructure:"filters"`
	OrderBy string   `mapstructure:"order_by"`
	Limit   int      `mapstructure:"limit"`
}

type docArgs struct {
	Doctype string         `mapstructure:"doctype"`
	Name    string         `mapstructure:"name"`
	Data    map[string]any `mapstructure:"data"`
}

type searchArgs struct {
	Doctype string `mapstructure:"doctype"`
	Query   string `mapstructure:"query"`
}

type accountsArgs struct {
	Company  string `mapstructure:"company"`
	RootType string `mapstructure:"root_type"`
}

type limitArgs struct {
	Limit int `mapstructure:"limit"`
}

type methodArgs struct {
	Method string         `mapstructure:"method"`
	Args   map[string]any `mapstructure:"args"`
}

// Execute routes one catalog action to the matching client method. It
// never fails at the language level: unknown actions, bad arguments, and
// backend errors all come back as failure envelopes for the model (or any
// other caller) to read.
func Execute(ctx context.Context, client *erpnext.Client, name string, args map[string]any) any {
	env, err := dispatch(ctx, client, name, args)

	if err != nil {
		toolExecutions.WithLabelValues(name, "error").Inc()
		return erpnext.Failure(err.Error(), fmt.Sprintf("%+v", err))
	}

	outcome := "ok"

	if !env.Success {
		outcome = "error"
	}

	toolExecutions.WithLabelValues(name, outcome).Inc()

	return env
}

func dispatch(ctx context.Context, client *erpnext.Client, name string, args map[string]any) (erpnext.Envelope, error) {
	switch name {
	case "list_documents":
		var p listArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		if p.Doctype == "" {
			return erpnext.Envelope{}, errMissing("doctype")
		}

		return client.List(ctx, p.Doctype, erpnext.ListOptions{
			Fields:  p.Fields,
			Filters: p.Filters,
			OrderBy: p.OrderBy,
			Limit:   p.Limit,
		})

	case "get_document":
		p, err := documentArgs(args, false)

		if err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Get(ctx, p.Doctype, p.Name)

	case "create_document":
		var p docArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		if p.Doctype == "" {
			return erpnext.Envelope{}, errMissing("doctype")
		}

		if p.Data == nil {
			return erpnext.Envelope{}, errMissing("data")
		}

		return client.Create(ctx, p.Doctype, p.Data)

	case "update_document":
		p, err := documentArgs(args, true)

		if err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Update(ctx, p.Doctype, p.Name, p.Data)

	case "delete_document":
		p, err := documentArgs(args, false)

		if err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Delete(ctx, p.Doctype, p.Name)

	case "submit_document":
		p, err := documentArgs(args, false)

		if err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Submit(ctx, p.Doctype, p.Name)

	case "cancel_document":
		p, err := documentArgs(args, false)

		if err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Cancel(ctx, p.Doctype, p.Name)

	case "search_link":
		var p searchArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		if p.Doctype == "" {
			return erpnext.Envelope{}, errMissing("doctype")
		}

		return client.SearchLink(ctx, p.Doctype, p.Query)

	case "get_accounts":
		var p accountsArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Accounts(ctx, p.Company, p.RootType)

	case "get_companies":
		return client.Companies(ctx)

	case "get_customers":
		var p limitArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Customers(ctx, p.Limit)

	case "get_suppliers":
		var p limitArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Suppliers(ctx, p.Limit)

	case "get_items":
		var p limitArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		return client.Items(ctx, p.Limit)

	case "call_method":
		var p methodArgs

		if err := decode(args, &p); err != nil {
			return erpnext.Envelope{}, err
		}

		if p.Method == "" {
			return erpnext.Envelope{}, errMissing("method")
		}

		return client.CallMethod(ctx, p.Method, p.Args)

	default:
		return erpnext.Failure("Unknown tool: "+name, ""), nil
	}
}

func documentArgs(args map[string]any, needData bool) (docArgs, error) {
	var p docArgs

	if err := decode(args, &p); err != nil {
		return p, err
	}

	if p.Doctype == "" {
		return p, errMissing("doctype")
	}

	if p.Name == "" {
		return p, errMissing("name")
	}

	if needData && p.Data == nil {
		return p, errMissing("data")
	}

	return p, nil
}

// decode loosely maps tool arguments onto a typed parameter struct. Weak
// typing tolerates models sending numbers as strings and vice versa.
func decode(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})

	if err != nil {
		return err
	}

	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	return nil
}

func errMissing(field string) error {
	return fmt.Errorf("missing required argument: %s", field)
}
