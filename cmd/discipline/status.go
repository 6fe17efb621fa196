package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and managed accounts",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()

	status, err := c.Status(ctx)
	if err != nil {
		fmt.Println("Status: NOT RUNNING")
		return err
	}
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"status": status, "accounts": accounts})
	}

	fmt.Println("\n=== discipline Status ===")
	fmt.Println("Status: RUNNING")
	fmt.Printf("Version: %s\n", status.Version)
	fmt.Printf("Mode: %s\n", status.Mode)
	fmt.Printf("Uptime: %s\n", time.Since(time.Unix(status.StartedAt, 0)).Round(time.Second))
	fmt.Printf("Pending tasks: %d\n", status.PendingTasks)
	fmt.Printf("Managed accounts: %d\n", status.Accounts)
	for _, a := range accounts {
		printAccount(a)
	}
	fmt.Println("=========================")
	return nil
}
