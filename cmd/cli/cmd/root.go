package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hirectl",
	Short: "Hirectl is a command line tool for interacting with the hireplane platform",
	Long: `hirectl is the command-line interface for the Hireplane agent scheduling platform.

Hireplane binds remote agents by their capability cards ("hires") and runs
scheduled, retryable invocations of their entrypoints ("jobs"). Workers claim
due jobs under short leases, so any number of workers can share one store
without double-running a job.

Common workflows:

  Hire an agent and schedule its first job:
    hirectl hire --card https://agent.example/card.json --entrypoint summarize --every 1h

  Attach another job to an existing hire:
    hirectl add <hire-id> --entrypoint translate --cron "0 9 * * *" --tz Europe/Istanbul

  Check a job:
    hirectl status <job-id>

  Pause and resume:
    hirectl pause job <job-id>
    hirectl resume job <job-id>

  Trigger a dispatch pass by hand:
    hirectl tick

Configuration:
  Set the API endpoint via a flag, environment variable, or config file:
    HIREPLANE_URL    API endpoint (default: http://localhost:7171)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".hirectl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".hirectl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "HIREPLANE_VARNAME"
	viper.SetEnvPrefix("HIREPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hirectl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:7171", "Hireplane Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
