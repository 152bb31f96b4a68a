package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireplane/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve detailed status for a job, including its state (pending, leased, paused, completed, failed), schedule, attempt count, and last error.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		job, err := client.GetJob(args[0])
		if err != nil {
			printClientError(cmd, err)
			return
		}
		printJob(cmd, *job)
	},
}

var showCmd = &cobra.Command{
	Use:   "show [hire_id]",
	Short: "Show a hire",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		hire, err := client.GetHire(args[0])
		if err != nil {
			printClientError(cmd, err)
			return
		}

		cmd.Printf("%sHire Details%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sID:%s       %s\n", colorDim, colorReset, hire.ID)
		cmd.Printf("%sCard:%s     %s\n", colorDim, colorReset, hire.AgentCardURL)
		if hire.AgentName != "" {
			cmd.Printf("%sAgent:%s    %s\n", colorDim, colorReset, hire.AgentName)
		}
		cmd.Printf("%sStatus:%s   %s\n", colorDim, colorReset, colorizeStatus(hire.Status))
		if hire.WalletID != "" {
			cmd.Printf("%sWallet:%s   %s\n", colorDim, colorReset, hire.WalletID)
		}
		cmd.Printf("%sCreated:%s  %s\n", colorDim, colorReset, formatTimeWithRelative(&hire.CreatedAt))
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List all jobs",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewHireClient(viper.GetString("url"))
		jobs, err := client.ListJobs()
		if err != nil {
			printClientError(cmd, err)
			return
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs.")
			return
		}
		for _, job := range jobs {
			next := "-"
			if job.NextRunAt != nil {
				next = job.NextRunAt.Format(time.RFC3339)
			}
			cmd.Printf("%s  %-22s %-10s next: %s\n", job.ID, job.EntrypointKey, colorizeStatus(job.Status), next)
		}
	},
}

func printJob(cmd *cobra.Command, job api.JobResponse) {
	icon := statusIcon(job.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.ID)
	cmd.Printf("%sHire:%s        %s\n", colorDim, colorReset, job.HireID)
	cmd.Printf("%sEntrypoint:%s  %s\n", colorDim, colorReset, job.EntrypointKey)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sSchedule:%s    %s\n", colorDim, colorReset, formatSchedule(job.Schedule))
	cmd.Printf("%sAttempts:%s    %d/%d\n", colorDim, colorReset, job.Attempts, job.MaxRetries+1)

	if job.LastError != "" {
		cmd.Printf("%sLast Error:%s  %s%s%s\n", colorDim, colorReset, colorRed, job.LastError, colorReset)
	}
	cmd.Printf("%sNext Run:%s    %s\n", colorDim, colorReset, formatTimeWithRelative(job.NextRunAt))
}

func formatSchedule(s api.ScheduleSpec) string {
	switch s.Kind {
	case "once":
		if s.At != nil {
			return fmt.Sprintf("once at %s", s.At.Format(time.RFC3339))
		}
		return "once"
	case "interval":
		return fmt.Sprintf("every %s", time.Duration(s.EveryMS)*time.Millisecond)
	case "cron":
		if s.Timezone != "" {
			return fmt.Sprintf("cron %q (%s)", s.Expression, s.Timezone)
		}
		return fmt.Sprintf("cron %q", s.Expression)
	default:
		return s.Kind
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed", "active":
		return colorGreen + "✓" + colorReset
	case "failed", "canceled":
		return colorRed + "✗" + colorReset
	case "leased":
		return colorYellow + "⏳" + colorReset
	case "pending":
		return colorCyan + "◯" + colorReset
	case "paused":
		return colorYellow + "‖" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "completed", "active":
		return icon + " " + colorGreen + status + colorReset
	case "failed", "canceled":
		return icon + " " + colorRed + status + colorReset
	case "leased", "paused":
		return icon + " " + colorYellow + status + colorReset
	case "pending":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	if until := time.Until(*t); until > 0 {
		return fmt.Sprintf("%s %s(in %s)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, formatDuration(until), colorReset)
	}
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relativeTime(*t), colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(jobsCmd)
}
