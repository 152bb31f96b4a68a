package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireplane/pkg/api"
)

var pauseCmd = &cobra.Command{
	Use:   "pause (hire|job) [id]",
	Short: "Pause a hire or a job",
	Long: `Pause a hire or a single job. A paused hire keeps its jobs but no
entrypoint is invoked until it is resumed; a paused job simply leaves the
dispatch queue.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"hire", "job"},
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		var (
			res *api.OpResponse
			err error
		)
		switch args[0] {
		case "hire":
			res, err = client.HireOp(args[1], "pause")
		case "job":
			res, err = client.PauseJob(args[1])
		default:
			cmd.Printf("Error: unknown target %q (want hire or job)\n", args[0])
			return
		}
		printOpResult(cmd, "Paused", res, err)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume (hire|job) [id]",
	Short: "Resume a paused hire or job",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		var (
			res *api.OpResponse
			err error
		)
		switch args[0] {
		case "hire":
			res, err = client.HireOp(args[1], "resume")
		case "job":
			var req api.ResumeJobRequest
			if at, _ := cmd.Flags().GetString("at"); at != "" {
				t, parseErr := time.Parse(time.RFC3339, at)
				if parseErr != nil {
					cmd.Printf("Error: invalid --at time (want RFC3339): %v\n", parseErr)
					return
				}
				req.NextRunAt = &t
			}
			res, err = client.ResumeJob(args[1], req)
		default:
			cmd.Printf("Error: unknown target %q (want hire or job)\n", args[0])
			return
		}
		printOpResult(cmd, "Resumed", res, err)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [hire_id]",
	Short: "Cancel a hire",
	Long: `Cancel a hire. Cancellation is terminal: remaining jobs are failed by
the next dispatch pass and the hire accepts no further jobs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		res, err := client.HireOp(args[0], "cancel")
		printOpResult(cmd, "Canceled", res, err)
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one dispatch pass",
	Long:  `Trigger one synchronous dispatch pass on the controller: fetch due jobs, claim them, and invoke their entrypoints. Mainly for development and operations.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		stats, err := client.Tick()
		if err != nil {
			printClientError(cmd, err)
			return
		}
		cmd.Printf("due: %d  claimed: %d  succeeded: %d  failed: %d  deferred: %d\n",
			stats.Due, stats.Claimed, stats.Succeeded, stats.Failed, stats.Deferred)
	},
}

func printOpResult(cmd *cobra.Command, verb string, res *api.OpResponse, err error) {
	if err != nil {
		printClientError(cmd, err)
		return
	}
	if !res.OK {
		cmd.Printf("Not applied: %s\n", res.Reason)
		return
	}
	cmd.Printf("✓ %s\n", verb)
}

func init() {
	resumeCmd.Flags().String("at", "", "Next run time for a resumed job (RFC3339, default: now)")

	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(tickCmd)
}
