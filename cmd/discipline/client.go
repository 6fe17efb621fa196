package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

const requestTimeout = 30 * time.Second

func newClient() (*api.Client, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.SocketPath), nil
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// resolveAccount accepts a uid or the username of a managed account.
func resolveAccount(ctx context.Context, c *api.Client, arg string) (domain.AccountID, error) {
	if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
		return domain.AccountID(n), nil
	}
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if a.Username == arg {
			return a.UserID, nil
		}
	}
	return 0, fmt.Errorf("%s is not a managed account", arg)
}

func parseID(kind, arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, arg, err)
	}
	return id, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("empty password on stdin")
	}
	return line, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAccount(a api.Account) {
	state := "enabled"
	if !a.Enabled {
		state = "disabled"
	}
	fmt.Printf("\n[%d] %s\n", a.UserID, a.Username)
	fmt.Printf("  Regulation: %s\n", state)
	fmt.Printf("  Status: %s (wants %s)\n", a.Status, a.Action)
	fmt.Printf("  Check interval: %s\n", a.CheckInterval)
	if len(a.Policies) == 0 {
		fmt.Println("  Policies: none")
		return
	}
	fmt.Println("  Policies:")
	for _, p := range a.Policies {
		enabled := "disabled"
		if p.Enabled {
			enabled = "enabled, protected for " + p.Protection
		}
		fmt.Printf("    - %s %q (%s)\n", p.ID, p.Name, enabled)
		for _, r := range p.Rules {
			fmt.Printf("        %s  %s\n", r.ID, r.Description)
		}
	}
}
