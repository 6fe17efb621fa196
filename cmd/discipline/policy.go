package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Create, rename, protect and delete policies",
}

var policyCreateCmd = &cobra.Command{
	Use:   "create <account> <name>",
	Short: "Create a policy (disabled until protected)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			pid, err := c.CreatePolicy(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(api.IDResponse{ID: pid})
			}
			fmt.Printf("Created policy %s\n", pid)
			return nil
		})
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <account> <policy-id>",
	Short: "Delete a policy (refused while enabled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseID("policy", args[1])
		if err != nil {
			return err
		}
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := c.DeletePolicy(cmd.Context(), id, pid); err != nil {
				return err
			}
			fmt.Printf("Deleted policy %s\n", pid)
			return nil
		})
	},
}

var policyRenameCmd = &cobra.Command{
	Use:   "rename <account> <policy-id> <name>",
	Short: "Rename a policy",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseID("policy", args[1])
		if err != nil {
			return err
		}
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := c.UpdatePolicyName(cmd.Context(), id, pid, args[2]); err != nil {
				return err
			}
			fmt.Printf("Renamed policy %s to %q\n", pid, args[2])
			return nil
		})
	},
}

var policyProtectCmd = &cobra.Command{
	Use:   "protect <account> <policy-id> <duration>",
	Short: "Enable a policy for longer (at most three weeks in total)",
	Long: `Adds duration to the policy's protection. While protected the policy
is enabled and cannot be deleted, and its rules can only be widened.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parseID("policy", args[1])
		if err != nil {
			return err
		}
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := c.IncreasePolicyProtection(cmd.Context(), id, pid, args[2]); err != nil {
				return err
			}
			fmt.Printf("Protected policy %s for %s more\n", pid, args[2])
			return nil
		})
	},
}

func init() {
	policyCmd.AddCommand(policyCreateCmd)
	policyCmd.AddCommand(policyDeleteCmd)
	policyCmd.AddCommand(policyRenameCmd)
	policyCmd.AddCommand(policyProtectCmd)
}
