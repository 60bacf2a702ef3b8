// Package agent owns the conversation loop: per-session message history,
// system instructions built around a point-in-time ERPNext context
// snapshot, and the dispatch of model-requested actions to the ERPNext
// client.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adrianliechti/bookman/pkg/catalog"
	"github.com/adrianliechti/bookman/pkg/erpnext"
	"github.com/adrianliechti/bookman/pkg/logging"
	"github.com/adrianliechti/bookman/pkg/provider"
	"github.com/adrianliechti/bookman/pkg/session"
)

var chatsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bookman_chats_total",
	Help: "User chat turns processed.",
})

// Agent ties a provider adapter to the ERPNext action surface and the
// session store.
type Agent struct {
	provider provider.Provider
	store    *session.Store
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithStore overrides the default in-memory session store.
func WithStore(store *session.Store) Option {
	return func(a *Agent) { a.store = store }
}

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithClock overrides the date source used in the system instructions.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates an Agent driving the given provider.
func New(p provider.Provider, opts ...Option) *Agent {
	a := &Agent{
		provider: p,
		store:    session.NewStore(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Chat processes one user message for a session and returns the model's
// final text answer. The session is created on first use, seeded with a
// system message carrying the context snapshot (fetched at most once per
// session). Tool execution failures stay inside the conversation; only
// model-backend failures surface as errors.
func (a *Agent) Chat(ctx context.Context, sessionID, text string, client *erpnext.Client) (string, error) {
	chatsTotal.Inc()
	a.logger.Info("chat", "session", shortID(sessionID), "message", truncate(text, 120))

	a.ensureSession(ctx, sessionID, client)
	a.store.Append(sessionID, provider.Message{Role: provider.RoleUser, Content: text})

	exec := func(ctx context.Context, name string, args map[string]any) any {
		return Execute(ctx, client, name, args)
	}

	transcript, err := a.provider.Send(ctx, a.store.Messages(sessionID), catalog.Tools, exec)

	if err != nil {
		return "", err
	}

	a.store.Append(sessionID, transcript...)

	return provider.FinalText(transcript), nil
}

// History returns the session's conversation in order, excluding the
// system message. Read-only, for display.
func (a *Agent) History(sessionID string) []provider.Message {
	msgs := a.store.Messages(sessionID)
	history := make([]provider.Message, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == provider.RoleSystem {
			continue
		}

		history = append(history, m)
	}

	return history
}

// ClearSession drops all history and cached context for the session.
func (a *Agent) ClearSession(sessionID string) {
	a.store.Clear(sessionID)
}

// RefreshContext drops the session's cached context snapshot. The next
// Chat call re-fetches it and rebuilds the system message in place, so a
// refresh takes effect mid-conversation.
func (a *Agent) RefreshContext(sessionID string) {
	a.store.InvalidateContext(sessionID)
}

func (a *Agent) ensureSession(ctx context.Context, sessionID string, client *erpnext.Client) {
	if a.store.Exists(sessionID) {
		if _, cached := a.store.Context(sessionID); !cached {
			a.store.ReplaceSystem(sessionID, renderInstructions(a.now(), a.contextText(ctx, sessionID, client)))
		}

		return
	}

	system := provider.Message{
		Role:    provider.RoleSystem,
		Content: renderInstructions(a.now(), a.contextText(ctx, sessionID, client)),
	}

	a.store.Seed(sessionID, system)
}

// contextText returns the cached context snapshot text, fetching and
// caching it when absent.
func (a *Agent) contextText(ctx context.Context, sessionID string, client *erpnext.Client) string {
	if text, ok := a.store.Context(sessionID); ok {
		return text
	}

	a.logger.Info("fetching ERPNext context", "session", shortID(sessionID))

	text := formatContext(client.FetchContext(ctx))

	a.logger.Info("context loaded", "session", shortID(sessionID), "chars", len(text))
	a.store.SetContext(sessionID, text)

	return text
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "…"
}
