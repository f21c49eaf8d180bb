package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fabfab/grant-drafter/api"
	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/drafting"
	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/knowledge"
)

var (
	verbose bool
	logger  *zap.Logger
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:           "grant-drafter",
	Short:         "Turn company and grant material into a drafted grant application",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		cfg = config.Load()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var extractCmd = &cobra.Command{
	Use:   "extract <file-or-url>",
	Short: "Print the normalized text of one PDF, PDF link or web page",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var interviewCmd = &cobra.Command{
	Use:   "interview <submission.yaml>",
	Short: "Answer the form questions interactively and draft the application",
	Args:  cobra.ExactArgs(1),
	RunE:  runInterview,
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Summarize eligible expenses from grant guidelines and an application form",
	Args:  cobra.NoArgs,
	RunE:  runBudget,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List drafted applications for a user",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored applications, rendered documents and graph data",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var (
	budgetGuidelines string
	budgetForm       string
	historyUser      string
	historyLimit     int
	clearConfirmed   bool
	interviewUser    string
	interviewOut     string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	budgetCmd.Flags().StringVar(&budgetGuidelines, "guidelines", "", "guidelines PDF path or URL")
	budgetCmd.Flags().StringVar(&budgetForm, "form", "", "application form PDF path or URL")

	historyCmd.Flags().StringVar(&historyUser, "user", "", "user id (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum applications to list")
	_ = historyCmd.MarkFlagRequired("user")

	clearCmd.Flags().BoolVar(&clearConfirmed, "confirm", false, "skip confirmation prompt")

	interviewCmd.Flags().StringVar(&interviewUser, "user", "", "user id recorded with the drafted application")
	interviewCmd.Flags().StringVar(&interviewOut, "out", "", "write the drafted markdown to this file")

	rootCmd.AddCommand(serveCmd, extractCmd, interviewCmd, budgetCmd, historyCmd, clearCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(a.deps(), logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func runExtract(cmd *cobra.Command, args []string) error {
	src, err := sourceFromArg(args[0])
	if err != nil {
		return err
	}

	result := newIngestionService(cfg, logger).Extract(cmd.Context(), ingestion.AttachmentLabel(src), src)
	if result.Failed() {
		return fmt.Errorf("%s %s: %s", result.Label, result.Kind().Describe(), result.Reason())
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return nil
}

func runBudget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sub := ingestion.Submission{}
	if budgetGuidelines != "" {
		src, err := sourceFromArg(budgetGuidelines)
		if err != nil {
			return err
		}
		sub.Guidelines = &src
	}
	if budgetForm != "" {
		src, err := sourceFromArg(budgetForm)
		if err != nil {
			return err
		}
		sub.ApplicationForm = &src
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}
	extracted := newIngestionService(cfg, logger).ExtractSubmission(ctx, sub)
	summary, err := drafting.NewBudgetAnalyzer(client, logger).Analyze(ctx, extracted.Guidelines, extracted.ApplicationForm)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary.Text)
	if summary.MatchedFundingRequired() {
		fmt.Fprintf(out, "\nMatched funding required: %s\n", summary.MatchedFunding)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	apps, err := a.applications.ListByUser(ctx, historyUser, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(apps) == 0 {
		fmt.Fprintln(out, "No applications drafted yet.")
		return nil
	}
	for i, app := range apps {
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, app.Title, app.UpdatedAt.Format(time.RFC3339))
		if app.DocumentURL != "" {
			fmt.Fprintf(out, "   %s\n", app.DocumentURL)
		}
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearConfirmed {
		ok, err := confirm(cmd, "This will permanently delete drafted applications, rendered documents and graph data. Continue? [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("clear aborted")
			return nil
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	removed, err := a.applications.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear applications: %w", err)
	}
	docs, err := a.documents.Clear()
	if err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if a.graph != nil {
		if err := knowledge.Purge(ctx, a.graph); err != nil {
			return fmt.Errorf("clear neo4j: %w", err)
		}
	}

	logger.Info("stored data removed", zap.Int64("applications", removed), zap.Int("documents", docs))
	return nil
}
