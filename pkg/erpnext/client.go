// Package erpnext wraps the Frappe/ERPNext REST API: generic document CRUD,
// whitelisted method calls, and the convenience queries the agent needs.
//
// Authentication is cookie-based. Login exchanges user credentials for a
// session cookie held in the client's jar; every other call rides on it.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Envelope is the uniform result wrapper returned by every client call.
// Backend rejections (non-2xx) become failure envelopes, not Go errors;
// only transport-level failures surface as errors.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Status  int    `json:"status,omitempty"`
	Error   any    `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Failure builds a failure envelope with an optional diagnostic detail.
func Failure(message string, detail string) Envelope {
	return Envelope{Success: false, Error: message, Detail: detail}
}

// Client is a per-user ERPNext API client authenticated via cookie session.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an unauthenticated client for the given ERPNext base URL.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
	}
}

// Login authenticates against ERPNext with username/password and returns a
// client carrying the session cookie. A rejected login returns the server's
// message as the error.
func Login(ctx context.Context, baseURL, username, password string) (*Client, error) {
	c := New(baseURL)

	body, _ := json.Marshal(map[string]string{"usr": username, "pwd": password})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/method/login", bytes.NewReader(body))

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)

		var payload struct {
			Message string `json:"message"`
		}

		if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
			return nil, fmt.Errorf("login failed: %s", payload.Message)
		}

		if len(raw) > 0 {
			return nil, fmt.Errorf("login failed: %s", strings.TrimSpace(string(raw)))
		}

		return nil, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	return c, nil
}

// BaseURL returns the ERPNext instance URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoggedInUser returns the email/username of the authenticated user.
func (c *Client) LoggedInUser(ctx context.Context) (string, error) {
	env, err := c.do(ctx, http.MethodGet, "method/frappe.auth.get_logged_user", nil, nil)

	if err != nil {
		return "", err
	}

	if !env.Success {
		return "", fmt.Errorf("get_logged_user: status %d", env.Status)
	}

	if s, ok := env.Data.(string); ok {
		return s, nil
	}

	return "", nil
}

// ListOptions narrows a List call. Zero values are omitted from the request;
// Limit defaults to 20.
type ListOptions struct {
	Fields  []string
	Filters any
	OrderBy string
	Limit   int
	Start   int
}

// List fetches documents of a doctype.
func (c *Client) List(ctx context.Context, doctype string, opts ListOptions) (Envelope, error) {
	limit := opts.Limit

	if limit <= 0 {
		limit = 20
	}

	query := url.Values{}
	query.Set("limit_page_length", strconv.Itoa(limit))
	query.Set("limit_start", strconv.Itoa(opts.Start))

	if len(opts.Fields) > 0 {
		raw, _ := json.Marshal(opts.Fields)
		query.Set("fields", string(raw))
	}

	if opts.Filters != nil {
		raw, _ := json.Marshal(opts.Filters)
		query.Set("filters", string(raw))
	}

	if opts.OrderBy != "" {
		query.Set("order_by", opts.OrderBy)
	}

	return c.do(ctx, http.MethodGet, "resource/"+url.PathEscape(doctype), query, nil)
}

// Get fetches a single document by doctype and name.
func (c *Client) Get(ctx context.Context, doctype, name string) (Envelope, error) {
	return c.do(ctx, http.MethodGet, "resource/"+url.PathEscape(doctype)+"/"+url.PathEscape(name), nil, nil)
}

// Create inserts a new document.
func (c *Client) Create(ctx context.Context, doctype string, data map[string]any) (Envelope, error) {
	return c.do(ctx, http.MethodPost, "resource/"+url.PathEscape(doctype), nil, map[string]any{"data": data})
}

// Update modifies fields of an existing document.
func (c *Client) Update(ctx context.Context, doctype, name string, data map[string]any) (Envelope, error) {
	return c.do(ctx, http.MethodPut, "resource/"+url.PathEscape(doctype)+"/"+url.PathEscape(name), nil, map[string]any{"data": data})
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, doctype, name string) (Envelope, error) {
	return c.do(ctx, http.MethodDelete, "resource/"+url.PathEscape(doctype)+"/"+url.PathEscape(name), nil, nil)
}

// Submit sets docstatus=1 on a draft document.
func (c *Client) Submit(ctx context.Context, doctype, name string) (Envelope, error) {
	return c.Update(ctx, doctype, name, map[string]any{"docstatus": 1})
}

// Cancel sets docstatus=2 on a submitted document.
func (c *Client) Cancel(ctx context.Context, doctype, name string) (Envelope, error) {
	return c.Update(ctx, doctype, name, map[string]any{"docstatus": 2})
}

// SearchLink performs an autocomplete-style name search, returning the top
// 10 matches.
func (c *Client) SearchLink(ctx context.Context, doctype, text string) (Envelope, error) {
	query := url.Values{}
	query.Set("doctype", doctype)
	query.Set("filters", fmt.Sprintf(`{"name": ["like", "%%%s%%"]}`, text))
	query.Set("fields", `["name"]`)
	query.Set("limit_page_length", "10")

	return c.do(ctx, http.MethodGet, "method/frappe.client.get_list", query, nil)
}

// CallMethod invokes a whitelisted server method by its dotted path.
func (c *Client) CallMethod(ctx context.Context, method string, kwargs map[string]any) (Envelope, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	return c.do(ctx, http.MethodPost, "method/"+method, nil, kwargs)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (Envelope, error) {
	endpoint := c.baseURL + "/api/" + path

	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)

		if err != nil {
			return Envelope{}, err
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)

	if err != nil {
		return Envelope{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)

	if err != nil {
		return Envelope{}, err
	}

	defer resp.Body.Close()

	return handle(resp), nil
}

// handle folds an HTTP response into the uniform envelope. Frappe wraps
// resource payloads in {"data": ...}; that inner value is unwrapped.
func handle(resp *http.Response) Envelope {
	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		return Envelope{Success: false, Status: resp.StatusCode, Error: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail any

		if err := json.Unmarshal(raw, &detail); err != nil {
			detail = strings.TrimSpace(string(raw))
		}

		return Envelope{Success: false, Status: resp.StatusCode, Error: detail}
	}

	var payload any

	if err := json.Unmarshal(raw, &payload); err != nil {
		return Envelope{Success: true, Data: strings.TrimSpace(string(raw))}
	}

	if object, ok := payload.(map[string]any); ok {
		if data, ok := object["data"]; ok {
			return Envelope{Success: true, Data: data}
		}

		if message, ok := object["message"]; ok {
			return Envelope{Success: true, Data: message}
		}
	}

	return Envelope{Success: true, Data: payload}
}
