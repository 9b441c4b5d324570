package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// dispatchRecord mirrors the dispatch log endpoint's JSON body
type dispatchRecord struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Target     string    `json:"target"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error"`
	FinishedAt time.Time `json:"finished_at"`
}

var dispatchesCmd = &cobra.Command{
	Use:   "dispatches",
	Short: "List recorded completion dispatch attempts",
	RunE:  runDispatches,
}

func init() {
	rootCmd.AddCommand(dispatchesCmd)
}

func runDispatches(cmd *cobra.Command, args []string) error {
	body, err := apiGet("/dispatches")
	if err != nil {
		return err
	}

	var records []dispatchRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Target", "Outcome", "Error", "Finished")
	for _, rec := range records {
		table.Append(rec.JobID, rec.Target, rec.Outcome, rec.Error, rec.FinishedAt.Format(time.RFC3339))
	}
	table.Render()
	return nil
}
