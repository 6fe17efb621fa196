package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage which accounts are regulated",
}

var accountManageCmd = &cobra.Command{
	Use:   "manage <username|uid>",
	Short: "Put an account under regulation",
	Long: `Puts an OS account under regulation. The daemon needs the account's
real password so it can restore it whenever login is allowed; pass it on
stdin with --password-stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountManage,
}

var accountUnmanageCmd = &cobra.Command{
	Use:   "unmanage <username|uid>",
	Short: "Release an account (refused while a policy is enabled)",
	Args:  cobra.ExactArgs(1),
	RunE: accountAction(func(c *api.Client, cmd *cobra.Command, id domain.AccountID) error {
		return c.UnmanageAccount(cmd.Context(), id)
	}, "released"),
}

var accountShowCmd = &cobra.Command{
	Use:   "show <username|uid>",
	Short: "Show one managed account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountShow,
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable <username|uid>",
	Short: "Resume applying the account's regulation",
	Args:  cobra.ExactArgs(1),
	RunE: accountAction(func(c *api.Client, cmd *cobra.Command, id domain.AccountID) error {
		return c.EnableRegulationApplication(cmd.Context(), id)
	}, "regulation enabled"),
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable <username|uid>",
	Short: "Stop applying the account's regulation (refused while a policy is enabled)",
	Args:  cobra.ExactArgs(1),
	RunE: accountAction(func(c *api.Client, cmd *cobra.Command, id domain.AccountID) error {
		return c.DisableRegulationApplication(cmd.Context(), id)
	}, "regulation disabled"),
}

var accountIntervalCmd = &cobra.Command{
	Use:   "interval <username|uid> <duration>",
	Short: "Set how often the account is re-checked (1s to 24h)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := c.SetCheckInterval(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Printf("Check interval of %s set to %s\n", args[0], args[1])
			return nil
		})
	},
}

var (
	passwordStdin bool
	checkInterval string
)

func init() {
	accountManageCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the account's real password from stdin")
	accountManageCmd.Flags().StringVar(&checkInterval, "interval", "", "Check interval (default from config)")
	_ = accountManageCmd.MarkFlagRequired("password-stdin")

	accountCmd.AddCommand(accountManageCmd)
	accountCmd.AddCommand(accountUnmanageCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountEnableCmd)
	accountCmd.AddCommand(accountDisableCmd)
	accountCmd.AddCommand(accountIntervalCmd)
}

func runAccountManage(cmd *cobra.Command, args []string) error {
	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()

	acc, err := c.ManageAccount(ctx, api.ManageAccountRequest{
		Account:       args[0],
		Password:      password,
		CheckInterval: checkInterval,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(acc)
	}
	fmt.Printf("Now managing %s (uid %d)\n", acc.Username, acc.UserID)
	return nil
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
		acc, err := c.GetAccount(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(acc)
		}
		printAccount(acc)
		return nil
	})
}
