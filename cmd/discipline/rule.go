package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Add, widen and delete rules of a policy",
}

var ruleCreateCmd = &cobra.Command{
	Use:   "create <account> <policy-id> <all-the-time|on-weekday|in-time-range|in-weekday-range> [args...]",
	Short: "Add a rule",
	Long: `Adds a rule to a policy. Activators:

  all-the-time
  on-weekday <weekday>
  in-time-range <HH:MM> <HH:MM>        (may cross midnight)
  in-weekday-range <weekday> <weekday> (may wrap around the week)`,
	Args: cobra.RangeArgs(3, 5),
	RunE: runRuleCreate,
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete <account> <policy-id> <rule-id>",
	Short: "Delete a rule (refused while its policy is enabled)",
	Args:  cobra.ExactArgs(3),
	RunE: ruleAction(func(cmd *cobra.Command, c *api.Client, id domain.AccountID, pid, rid uuid.UUID, _ []string) error {
		return c.DeleteRule(cmd.Context(), id, pid, rid)
	}, "deleted"),
}

var ruleTimeRangeCmd = &cobra.Command{
	Use:   "time-range <account> <policy-id> <rule-id> <HH:MM> <HH:MM>",
	Short: "Change a time-range rule (only wider while enabled)",
	Args:  cobra.ExactArgs(5),
	RunE: ruleAction(func(cmd *cobra.Command, c *api.Client, id domain.AccountID, pid, rid uuid.UUID, rest []string) error {
		return c.UpdateRuleTimeRange(cmd.Context(), id, pid, rid, rest[0], rest[1])
	}, "updated"),
}

var ruleWeekdayRangeCmd = &cobra.Command{
	Use:   "weekday-range <account> <policy-id> <rule-id> <weekday> <weekday>",
	Short: "Change a weekday-range rule (only wider while enabled)",
	Args:  cobra.ExactArgs(5),
	RunE: ruleAction(func(cmd *cobra.Command, c *api.Client, id domain.AccountID, pid, rid uuid.UUID, rest []string) error {
		return c.UpdateRuleWeekdayRange(cmd.Context(), id, pid, rid, rest[0], rest[1])
	}, "updated"),
}

func init() {
	ruleCmd.AddCommand(ruleCreateCmd)
	ruleCmd.AddCommand(ruleDeleteCmd)
	ruleCmd.AddCommand(ruleTimeRangeCmd)
	ruleCmd.AddCommand(ruleWeekdayRangeCmd)
}

// activatorFromArgs builds the wire activator for "rule create".
func activatorFromArgs(args []string) (api.Activator, error) {
	kind, rest := args[0], args[1:]
	want := map[string]int{
		policy.KindAllTheTime.String():     0,
		policy.KindOnWeekday.String():      1,
		policy.KindInTimeRange.String():    2,
		policy.KindInWeekdayRange.String(): 2,
	}
	n, ok := want[kind]
	if !ok {
		return api.Activator{}, fmt.Errorf("unknown activator %q", kind)
	}
	if len(rest) != n {
		return api.Activator{}, fmt.Errorf("%s takes %d argument(s), got %d", kind, n, len(rest))
	}
	a := api.Activator{Kind: kind}
	switch n {
	case 1:
		a.Weekday = rest[0]
	case 2:
		a.From, a.Till = rest[0], rest[1]
	}
	// Validate locally for a friendlier message than the daemon's.
	if _, err := a.ToPolicy(); err != nil {
		return api.Activator{}, err
	}
	return a, nil
}

func runRuleCreate(cmd *cobra.Command, args []string) error {
	pid, err := parseID("policy", args[1])
	if err != nil {
		return err
	}
	a, err := activatorFromArgs(args[2:])
	if err != nil {
		return err
	}
	return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
		rid, err := c.CreateRule(cmd.Context(), id, pid, a)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(api.IDResponse{ID: rid})
		}
		fmt.Printf("Created rule %s\n", rid)
		return nil
	})
}

// ruleAction builds a RunE for commands addressing one rule as
// <account> <policy-id> <rule-id> [rest...].
func ruleAction(fn func(cmd *cobra.Command, c *api.Client, id domain.AccountID, pid, rid uuid.UUID, rest []string) error, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		pid, err := parseID("policy", args[1])
		if err != nil {
			return err
		}
		rid, err := parseID("rule", args[2])
		if err != nil {
			return err
		}
		return withAccount(cmd, args[0], func(c *api.Client, id domain.AccountID) error {
			if err := fn(cmd, c, id, pid, rid, args[3:]); err != nil {
				return err
			}
			fmt.Printf("Rule %s %s\n", rid, done)
			return nil
		})
	}
}
