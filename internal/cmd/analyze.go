package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/khushiGit123/jira-gen/internal/orchestrator"
	"github.com/khushiGit123/jira-gen/internal/run"
	"github.com/khushiGit123/jira-gen/internal/stage"
	"github.com/khushiGit123/jira-gen/internal/util"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [requirements]",
	Short: "Run the full pipeline on a business requirement",
	Long: `Analyze a free-text business requirement and produce structured
requirements, a technical design with diagrams, and a Jira-ready backlog.
The requirement is taken from the argument, from --file, or from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("file", "f", "", "read the requirement from a file")
	analyzeCmd.Flags().String("target-users", "", "who the product serves")
	analyzeCmd.Flags().String("timeline", "", "delivery timeline expectation")
	analyzeCmd.Flags().String("budget", "", "budget constraint")
	analyzeCmd.Flags().String("project", "", "Jira project key override for this run")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	requirements, err := readRequirements(cmd, args)
	if err != nil {
		return err
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	input := run.UserInput{
		Requirements:   requirements,
		TargetUsers:    mustString(cmd, "target-users"),
		Timeline:       mustString(cmd, "timeline"),
		Budget:         mustString(cmd, "budget"),
		JiraProjectKey: mustString(cmd, "project"),
	}

	state, err := a.orch.Start(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s started\n", state.ID)
	final, err := a.orch.Execute(ctx, state.ID)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), renderResult(final, a.cfg.Output.Dir))
	if final.Status == run.StatusFailed {
		return fmt.Errorf("run failed: %s", final.Summary)
	}
	return nil
}

func readRequirements(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if file := mustString(cmd, "file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading requirements file: %w", err)
		}
		return string(data), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no requirement given: pass it as an argument, via --file, or on stdin")
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
)

var stageLabels = map[string]string{
	stage.NameBusinessAnalyst: "Business analysis",
	stage.NameArchitect:       "Technical design",
	stage.NameProjectManager:  "Backlog planning",
}

func renderResult(state run.RunState, outputDir string) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("Analysis result"))
	sb.WriteString("\n\n")

	statusStyle := okStyle
	switch state.Status {
	case run.StatusFailed, run.StatusCancelled:
		statusStyle = failStyle
	case run.StatusCompletedWithWarnings:
		statusStyle = warnStyle
	}
	fmt.Fprintf(&sb, "%s %s\n", sectionStyle.Render("Status:"), statusStyle.Render(string(state.Status)))
	if state.Summary != "" {
		fmt.Fprintf(&sb, "%s %s\n", sectionStyle.Render("Summary:"), state.Summary)
	}

	sb.WriteString("\n")
	sb.WriteString(sectionStyle.Render("Stages"))
	sb.WriteString("\n")
	for _, result := range state.Stages {
		label := stageLabels[result.Stage]
		if label == "" {
			label = result.Stage
		}
		mark := okStyle.Render("ok")
		if result.Status != run.StageSucceeded {
			mark = failStyle.Render(string(result.Status))
		}
		detail := fmt.Sprintf("%d attempt(s), %s confidence", result.Attempts, result.Confidence)
		if result.Error != "" {
			detail = util.Truncate(util.FirstLine(result.Error), 80)
		}
		fmt.Fprintf(&sb, "  %-18s %s  %s\n", label, mark, dimStyle.Render(detail))
	}

	if len(state.Warnings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render("Warnings"))
		sb.WriteString("\n")
		for _, w := range state.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}

	if outputDir != "" && state.Status != run.StatusFailed && state.Status != run.StatusCancelled {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Artifacts"))
		sb.WriteString("\n")
		for _, name := range []string{orchestrator.RequirementsFile, orchestrator.DesignFile, orchestrator.BacklogFile} {
			fmt.Fprintf(&sb, "  %s\n", filepath.Join(outputDir, name))
		}
	}

	return sb.String()
}
