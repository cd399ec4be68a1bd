package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mikeboe/deep-research/pkg/app"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/spf13/cobra"
)

var (
	query   string
	answers string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long: `deep-research turns a question into a written report. It asks a few clarifying
questions, plans and runs web searches in parallel, drafts a report and has it
scored, refining until the report passes or three drafts have been written.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if len(args) > 0 && query == "" {
				query = strings.Join(args, " ")
			}
			return run(ctx, config.Load(), bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), cmd.Flags().Changed("answers"))
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research question")
	rootCmd.Flags().StringVarP(&answers, "answers", "a", "", `Answers to the clarifying questions ("skip" to skip them)`)
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log agent activity to stderr")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in *bufio.Reader, out io.Writer, answersGiven bool) error {
	pipeline, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize research engine: %w", err)
	}
	defer pipeline.Close()
	engine := pipeline.Engine

	if strings.TrimSpace(query) == "" {
		query, err = prompt(in, out, "What would you like to research? ")
		if err != nil {
			return err
		}
	}

	if !answersGiven {
		questions, err := engine.Clarify(ctx, query)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nTo focus the research, please answer:")
		for i, q := range questions {
			fmt.Fprintf(out, "  %d. %s\n", i+1, q)
		}
		answers, err = prompt(in, out, fmt.Sprintf("\nYour answers (or %q): ", cfg.SkipToken))
		if err != nil {
			return err
		}
	}

	q, err := engine.NewQuery(query, answers)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	outcome, err := engine.Run(ctx, "", q, progressPrinter(out))
	if err != nil {
		return err
	}

	printReport(out, outcome)
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printReport(out io.Writer, o *research.Outcome) {
	fmt.Fprintf(out, "\n%s\n\n", strings.Repeat("=", 60))
	if o.Report.ShortSummary != "" {
		fmt.Fprintf(out, "%s\n\n", o.Report.ShortSummary)
	}
	fmt.Fprintln(out, o.Report.Markdown)

	if len(o.Report.FollowUpQuestions) > 0 {
		fmt.Fprintln(out, "\nFollow-up questions:")
		for _, fq := range o.Report.FollowUpQuestions {
			fmt.Fprintf(out, "  - %s\n", fq)
		}
	}
	if o.DeliveryErr != nil {
		fmt.Fprintf(out, "\nThe report could not be emailed: %v\n", o.DeliveryErr)
	}
}
