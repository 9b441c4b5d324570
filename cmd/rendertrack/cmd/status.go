package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusResponse mirrors the poll endpoint's JSON body
type statusResponse struct {
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	CurrentStep string  `json:"currentStep"`
	OutputURL   *string `json:"outputUrl"`
	Error       *string `json:"error"`
}

// jobRecord mirrors the job list endpoint's JSON body
type jobRecord struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	OutputRef string    `json:"output_ref"`
	Backend   struct {
		Kind string `json:"kind"`
	} `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the reconciled status of a render job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List all tracked render jobs",
	RunE:  runJobsList,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
}

func fetchStatus(jobID string) (*statusResponse, error) {
	body, err := apiGet("/jobs/" + jobID + "/status")
	if err != nil {
		return nil, err
	}
	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func printStatus(result *statusResponse) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Status", result.Status)
	table.Append("Progress", fmt.Sprintf("%d%%", result.Progress))
	table.Append("Step", result.CurrentStep)
	if result.OutputURL != nil {
		table.Append("Output", *result.OutputURL)
	}
	if result.Error != nil {
		table.Append("Error", *result.Error)
	}
	table.Render()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	result, err := fetchStatus(args[0])
	if err != nil {
		return err
	}
	return printStatus(result)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	body, err := apiGet("/jobs")
	if err != nil {
		return err
	}

	var jobs []jobRecord
	if err := json.Unmarshal(body, &jobs); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Status", "Progress", "Backend", "Created")
	for _, job := range jobs {
		table.Append(
			job.ID,
			job.Status,
			fmt.Sprintf("%d%%", job.Progress),
			job.Backend.Kind,
			job.CreatedAt.Format(time.RFC3339),
		)
	}
	table.Render()
	fmt.Printf("\nTotal: %d jobs\n", len(jobs))
	return nil
}
