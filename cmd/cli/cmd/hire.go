package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hireplane/pkg/api"
)

var hireCmd = &cobra.Command{
	Use:   "hire",
	Short: "Hire an agent and schedule its first job",
	Long: `Hire an agent by its capability card URL and schedule the first job
against one of its entrypoints.

Exactly one of --at, --every, or --cron selects the schedule.

Example:
  hirectl hire --card https://agent.example/card.json --entrypoint summarize --every 1h
  hirectl hire --card https://agent.example/card.json --entrypoint report --cron "0 9 * * 1" --tz Europe/Istanbul
  hirectl hire --card https://agent.example/card.json --entrypoint backfill --at 2026-09-01T03:00:00Z --input '{"since":"2026-01-01"}'`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		card, _ := flags.GetString("card")
		entrypoint, _ := flags.GetString("entrypoint")
		input, _ := flags.GetString("input")
		wallet, _ := flags.GetString("wallet")

		if card == "" {
			cmd.Println("Error: --card is required")
			return
		}
		if entrypoint == "" {
			cmd.Println("Error: --entrypoint is required")
			return
		}

		schedule, err := scheduleFromFlags(flags)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		req := api.CreateHireRequest{
			AgentCardURL:  card,
			EntrypointKey: entrypoint,
			Schedule:      schedule,
			WalletID:      wallet,
		}
		if input != "" {
			req.Input = json.RawMessage(input)
		}
		if flags.Changed("max-retries") {
			maxRetries, _ := flags.GetInt("max-retries")
			req.MaxRetries = &maxRetries
		}

		client := NewHireClient(viper.GetString("url"))
		result, err := client.CreateHire(req)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("✓ Agent hired!\nHire ID: %s\nJob ID:  %s\n", result.HireID, result.JobID)
	},
}

// scheduleFromFlags builds a ScheduleSpec from the --at/--every/--cron flags.
func scheduleFromFlags(flags *pflag.FlagSet) (api.ScheduleSpec, error) {
	at, _ := flags.GetString("at")
	every, _ := flags.GetDuration("every")
	cron, _ := flags.GetString("cron")
	tz, _ := flags.GetString("tz")

	set := 0
	for _, chosen := range []bool{at != "", every > 0, cron != ""} {
		if chosen {
			set++
		}
	}
	if set != 1 {
		return api.ScheduleSpec{}, fmt.Errorf("exactly one of --at, --every, or --cron is required")
	}

	switch {
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return api.ScheduleSpec{}, fmt.Errorf("invalid --at time (want RFC3339): %w", err)
		}
		return api.ScheduleSpec{Kind: "once", At: &t}, nil
	case every > 0:
		return api.ScheduleSpec{Kind: "interval", EveryMS: every.Milliseconds()}, nil
	default:
		return api.ScheduleSpec{Kind: "cron", Expression: cron, Timezone: tz}, nil
	}
}

func printClientError(cmd *cobra.Command, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("Error: %v\n", err)
}

func addScheduleFlags(flags *pflag.FlagSet) {
	flags.String("at", "", "Run once at this RFC3339 time")
	flags.Duration("every", 0, "Run repeatedly at this interval (e.g. 30s, 1h)")
	flags.String("cron", "", "Run on a 5-field cron expression")
	flags.String("tz", "", "IANA timezone for --cron (default: server local)")
	flags.Int("max-retries", 0, "Transient-failure retry ceiling (0 fails on first error)")
}

func init() {
	flags := hireCmd.Flags()
	flags.String("card", "", "Agent capability card URL (required)")
	flags.StringP("entrypoint", "e", "", "Entrypoint key to invoke (required)")
	flags.String("input", "", "JSON input passed to the entrypoint")
	flags.String("wallet", "", "Wallet ID for paid invocations")
	addScheduleFlags(flags)

	rootCmd.AddCommand(hireCmd)
}
