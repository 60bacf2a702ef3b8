// Package console is a line-oriented chat front end for local use. It
// logs in with the service credentials from the environment and renders
// the assistant's markdown answers for the terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adrianliechti/bookman/pkg/agent"
	"github.com/adrianliechti/bookman/pkg/config"
	"github.com/adrianliechti/bookman/pkg/erpnext"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
)

func Run(ctx context.Context, cfg *config.Config, a *agent.Agent) error {
	client, err := erpnext.Login(ctx, cfg.ERPNextURL, cfg.ERPNextUser, cfg.ERPNextPassword)

	if err != nil {
		return fmt.Errorf("erpnext login: %w", err)
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)

	sessionID := uuid.NewString()

	fmt.Println("bookman console. Type a request, or /clear, /refresh, /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil

		case "/clear":
			a.ClearSession(sessionID)
			fmt.Println("session cleared")
			continue

		case "/refresh":
			a.RefreshContext(sessionID)
			fmt.Println("context will be refreshed on the next message")
			continue
		}

		answer, err := a.Chat(ctx, sessionID, line, client)

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if renderer != nil {
			if rendered, err := renderer.Render(answer); err == nil {
				fmt.Print(rendered)
				continue
			}
		}

		fmt.Println(answer)
	}
}
