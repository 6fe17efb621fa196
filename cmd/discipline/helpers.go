package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// withAccount connects, resolves arg to a managed account and runs fn with
// a request deadline installed on cmd's context.
func withAccount(cmd *cobra.Command, arg string, fn func(c *api.Client, id domain.AccountID) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	cmd.SetContext(ctx)

	id, err := resolveAccount(ctx, c, arg)
	if err != nil {
		return err
	}
	return fn(c, id)
}

// accountAction builds a RunE for single-account commands that print done on success.
func accountAction(fn func(c *api.Client, cmd *cobra.Command, id domain.AccountID) error, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := fn(c, cmd, id); err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], done)
			return nil
		})
	}
}
