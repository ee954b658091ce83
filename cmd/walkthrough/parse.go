package main

import (
	"fmt"
	"io"
	"os"

	"testcase-workflow-be/pkg/testcase"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a generated test-case document and print the valid records",
	Long: `Reads a test-case document from a file, or stdin when no file is given,
and prints every record that survives validation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		records := testcase.Parse(string(raw))
		if len(records) == 0 {
			color.Yellow("No valid test cases found")
			return nil
		}
		printRecords(records)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func printRecords(records []testcase.Record) {
	for _, r := range records {
		fmt.Printf("  %s %s\n", color.CyanString(r.ID), r.Title)
		fmt.Printf("    priority=%s type=%s steps=%d\n", priorityColor(r.Priority), r.Type, len(r.Steps))
		for i, step := range r.Steps {
			fmt.Printf("    %d. %s\n", i+1, step)
		}
		fmt.Printf("    expect: %s\n", r.ExpectedResults)
	}
	color.Green("%d test case(s)", len(records))
}

func priorityColor(p testcase.Priority) string {
	switch p {
	case testcase.PriorityCritical:
		return color.RedString(string(p))
	case testcase.PriorityHigh:
		return color.YellowString(string(p))
	default:
		return string(p)
	}
}
