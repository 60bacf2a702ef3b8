package erpnext

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	var sawLogin bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/method/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice@example.com", body["usr"])
		require.Equal(t, "secret", body["pwd"])

		sawLogin = true

		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc123", Path: "/"})
		w.Write([]byte(`{"message":"Logged In"}`))
	}))
	defer srv.Close()

	client, err := Login(context.Background(), srv.URL, "alice@example.com", "secret")
	require.NoError(t, err)
	require.True(t, sawLogin)

	u, _ := url.Parse(srv.URL)
	cookies := client.http.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, "sid", cookies[0].Name)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	_, err := Login(context.Background(), srv.URL, "alice@example.com", "wrong")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid login credentials")
}

func TestListParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/resource/Sales Invoice", r.URL.Path)

		q := r.URL.Query()
		require.Equal(t, "5", q.Get("limit_page_length"))
		require.Equal(t, "10", q.Get("limit_start"))
		require.Equal(t, `["name","status"]`, q.Get("fields"))
		require.Equal(t, `{"status":"Paid"}`, q.Get("filters"))
		require.Equal(t, "posting_date desc", q.Get("order_by"))

		w.Write([]byte(`{"data":[{"name":"SINV-0001","status":"Paid"}]}`))
	}))
	defer srv.Close()

	env, err := New(srv.URL).List(context.Background(), "Sales Invoice", ListOptions{
		Fields:  []string{"name", "status"},
		Filters: map[string]any{"status": "Paid"},
		OrderBy: "posting_date desc",
		Limit:   5,
		Start:   10,
	})

	require.NoError(t, err)
	require.True(t, env.Success)

	rows, ok := env.Data.([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestListDefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "20", r.URL.Query().Get("limit_page_length"))
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).List(context.Background(), "Customer", ListOptions{})
	require.NoError(t, err)
}

func TestCreateWrapsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		raw, _ := io.ReadAll(r.Body)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "ACME Corp", data["customer_name"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"name":"ACME Corp"}}`))
	}))
	defer srv.Close()

	env, err := New(srv.URL).Create(context.Background(), "Customer", map[string]any{"customer_name": "ACME Corp"})
	require.NoError(t, err)
	require.True(t, env.Success)
}

func TestSubmitAndCancelSetDocstatus(t *testing.T) {
	var statuses []float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		statuses = append(statuses, body["data"]["docstatus"].(float64))

		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Submit(context.Background(), "Sales Invoice", "SINV-0001")
	require.NoError(t, err)

	_, err = client.Cancel(context.Background(), "Sales Invoice", "SINV-0001")
	require.NoError(t, err)

	require.Equal(t, []float64{1, 2}, statuses)
}

func TestBackendRejectionBecomesFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"exc_type":"PermissionError","_server_messages":"Not permitted"}`))
	}))
	defer srv.Close()

	env, err := New(srv.URL).Get(context.Background(), "Sales Invoice", "SINV-0001")
	require.NoError(t, err)

	require.False(t, env.Success)
	require.Equal(t, http.StatusForbidden, env.Status)

	detail, ok := env.Error.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "PermissionError", detail["exc_type"])
}

func TestHandleUnwrapsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/method/frappe.auth.get_logged_user", r.URL.Path)
		w.Write([]byte(`{"message":"alice@example.com"}`))
	}))
	defer srv.Close()

	user, err := New(srv.URL).LoggedInUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user)
}

func TestHandleNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	env, err := New(srv.URL).Get(context.Background(), "Customer", "X")
	require.NoError(t, err)

	require.False(t, env.Success)
	require.Equal(t, http.StatusBadGateway, env.Status)
	require.Equal(t, "<html>bad gateway</html>", env.Error)
}

func TestSearchLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/method/frappe.client.get_list", r.URL.Path)

		q := r.URL.Query()
		require.Equal(t, "Customer", q.Get("doctype"))
		require.Equal(t, `{"name": ["like", "%ACME%"]}`, q.Get("filters"))
		require.Equal(t, "10", q.Get("limit_page_length"))

		w.Write([]byte(`{"message":[{"name":"ACME Corp"}]}`))
	}))
	defer srv.Close()

	env, err := New(srv.URL).SearchLink(context.Background(), "Customer", "ACME")
	require.NoError(t, err)
	require.True(t, env.Success)
}

func TestFailureHelper(t *testing.T) {
	env := Failure("Unknown tool: foo", "no such action")

	require.False(t, env.Success)
	require.Equal(t, "Unknown tool: foo", env.Error)
	require.Equal(t, "no such action", env.Detail)
}
