package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Poll a render job until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	fmt.Printf("Watching job %s (press Ctrl+C to stop)...\n\n", jobID)

	for {
		result, err := fetchStatus(jobID)
		if err != nil {
			return err
		}

		fmt.Printf("[%s] %s %3d%%  %s\n",
			time.Now().Format("15:04:05"), result.Status, result.Progress, result.CurrentStep)

		if result.Status == "completed" || result.Status == "failed" {
			fmt.Println()
			return printStatus(result)
		}
		time.Sleep(watchInterval)
	}
}
