package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/internal/service"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/workflow"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every workflow stage for a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		backendURL, _ := cmd.Flags().GetString("backend")
		userId, _ := cmd.Flags().GetString("user")
		project, _ := cmd.Flags().GetString("project")
		prompt, _ := cmd.Flags().GetString("prompt")
		delay, _ := cmd.Flags().GetDuration("delay")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		sessions, flow, err := newServices(backendURL, userId, delay)
		if err != nil {
			return err
		}
		return walk(ctx, sessions, flow, userId, project, prompt)
	},
}

func init() {
	runCmd.Flags().String("backend", "", "backend base URL (fixtures when empty)")
	runCmd.Flags().String("user", "user123", "backend user id")
	runCmd.Flags().String("project", "Healthcare Walkthrough", "project name for the new session")
	runCmd.Flags().String("prompt", "Patient portal must show lab results within 24 hours", "analysis prompt")
	runCmd.Flags().Duration("delay", 0, "artificial fixture latency")
	runCmd.Flags().Duration("timeout", 5*time.Minute, "overall deadline")
	rootCmd.AddCommand(runCmd)
}

func newServices(backendURL, userId string, delay time.Duration) (service.ISessionService, service.IWorkflowService, error) {
	fixtures, err := backend.NewFixtureClient(userId, delay)
	if err != nil {
		return nil, nil, err
	}

	var source backend.DataSource = fixtures
	if backendURL != "" {
		source = backend.NewLiveClient(backendURL, userId, fixtures)
	}

	repo := memory.NewSessionRepository(time.Hour)
	metrics := service.NewWorkflowMetrics(prometheus.NewRegistry(), repo.Count)
	log := logger.NewNopLogger()

	return service.NewSessionService(repo, source, nil, metrics, log),
		service.NewWorkflowService(repo, source, nil, metrics, log),
		nil
}

func walk(ctx context.Context, sessions service.ISessionService, flow service.IWorkflowService, userId, project, prompt string) error {
	color.Cyan("🚀 Starting workflow walkthrough\n")

	created, err := sessions.Create(ctx, userId, &dto.CreateSessionRequest{ProjectName: project})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	color.Green("Session %s (%s)", created.Id, created.Status)
	id := created.Id

	steps := []struct {
		title string
		run   func() (*dto.WorkflowResponse, error)
	}{
		{"1. Fetch context", func() (*dto.WorkflowResponse, error) {
			return flow.FetchContext(ctx, userId, id, &dto.FetchContextRequest{Prompt: prompt})
		}},
		{"2. Start analysis", func() (*dto.WorkflowResponse, error) {
			return flow.StartAnalysis(ctx, userId, id)
		}},
		{"3. Analyze requirements", func() (*dto.WorkflowResponse, error) {
			return flow.Analyze(ctx, userId, id, &dto.AnalyzeRequest{Prompt: prompt})
		}},
		{"4. Save analysis", func() (*dto.WorkflowResponse, error) {
			view, err := sessions.Workflow(ctx, userId, id)
			if err != nil {
				return nil, err
			}
			return flow.SaveAnalysis(ctx, userId, id, &dto.SaveAnalysisRequest{Analysis: view.Analysis})
		}},
		{"5. Generate test cases", func() (*dto.WorkflowResponse, error) {
			return flow.GenerateTestCases(ctx, userId, id, &dto.GenerateTestCasesRequest{})
		}},
	}

	var view *dto.WorkflowResponse
	for _, step := range steps {
		color.Yellow("\n%s", step.title)
		start := time.Now()
		view, err = step.run()
		if err != nil {
			color.Red("Failed: %v", err)
			return err
		}
		color.Green("Stage: %s (%s) in %s", view.Stage.Id, view.Stage.Source, time.Since(start).Round(time.Millisecond))
		fmt.Println("  " + view.Stage.Description)
		fmt.Println("  " + renderSteps(view.Steps))
	}

	color.Yellow("\nTranscript")
	for _, m := range view.Messages {
		fmt.Printf("  [%s] %s\n", m.Role, firstLine(m.Text))
	}

	color.Yellow("\nTest cases")
	printRecords(view.TestCases)

	color.Cyan("\n✅ Walkthrough complete")
	return nil
}

func renderSteps(steps []workflow.Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		switch {
		case s.Complete:
			parts = append(parts, color.GreenString("✔ %s", s.Title))
		case s.Active:
			parts = append(parts, color.CyanString("● %s", s.Title))
		default:
			parts = append(parts, color.HiBlackString("○ %s", s.Title))
		}
	}
	return strings.Join(parts, "  ")
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	if len(line) > 100 {
		return line[:97] + "..."
	}
	return line
}
