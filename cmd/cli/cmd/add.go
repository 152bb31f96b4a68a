package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireplane/pkg/api"
)

var addCmd = &cobra.Command{
	Use:   "add [hire_id]",
	Short: "Attach another scheduled job to an existing hire",
	Long: `Attach another job to a hire. The entrypoint must be advertised on the
agent's capability card. Paused hires accept jobs; canceled hires do not.

Example:
  hirectl add 4f7c... --entrypoint translate --cron "0 9 * * *" --tz Europe/Istanbul`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hireID := args[0]
		flags := cmd.Flags()
		entrypoint, _ := flags.GetString("entrypoint")
		input, _ := flags.GetString("input")

		if entrypoint == "" {
			cmd.Println("Error: --entrypoint is required")
			return
		}

		schedule, err := scheduleFromFlags(flags)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		req := api.AddJobRequest{
			EntrypointKey: entrypoint,
			Schedule:      schedule,
		}
		if input != "" {
			req.Input = json.RawMessage(input)
		}
		if flags.Changed("max-retries") {
			maxRetries, _ := flags.GetInt("max-retries")
			req.MaxRetries = &maxRetries
		}

		client := NewHireClient(viper.GetString("url"))
		result, err := client.AddJob(hireID, req)
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("✓ Job added!\nJob ID: %s\n", result.JobID)
	},
}

func init() {
	flags := addCmd.Flags()
	flags.StringP("entrypoint", "e", "", "Entrypoint key to invoke (required)")
	flags.String("input", "", "JSON input passed to the entrypoint")
	addScheduleFlags(flags)

	rootCmd.AddCommand(addCmd)
}
