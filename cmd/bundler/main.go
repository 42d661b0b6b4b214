// ==========================
// File: cmd/bundler/main.go
// ==========================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/bundler"
	"github.com/rovshanmuradov/pump-bundler/internal/config"
	"github.com/rovshanmuradov/pump-bundler/internal/logger"
	"github.com/rovshanmuradov/pump-bundler/internal/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/session"
)

var (
	configPath  string
	sessionPath string
	dryRun      bool
)

func main() {
	root := &cobra.Command{
		Use:           "pump-bundler",
		Short:         "Atomic pump.fun token launch bundler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fund wallets, build and submit the launch bundle, then sweep residuals",
		RunE:  runRun,
	}
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and build everything without moving funds or submitting")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List persisted bundling sessions",
		RunE:  runSessions,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report live participant balances for a session without mutating it",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&sessionPath, "session", "", "session file path (defaults to the latest session)")

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Re-run the residual fund sweep for a session",
		RunE:  runRecover,
	}
	recoverCmd.Flags().StringVar(&sessionPath, "session", "", "session file path (defaults to the latest session)")

	root.AddCommand(runCmd, sessionsCmd, analyzeCmd, recoverCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and wires the runner.
func setup() (*bundler.Runner, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	if cfg.LogFile != "" {
		logCfg.LogFile = cfg.LogFile
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runner, err := bundler.New(cfg, log.Logger)
	if err != nil {
		return nil, nil, err
	}
	return runner, log, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	runner, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sess, err := runner.Run(cmd.Context(), dryRun)
	if err != nil {
		if sess != nil {
			log.Error("Run failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return err
	}
	if dryRun {
		fmt.Println("Dry run complete, nothing was submitted.")
		return nil
	}

	fmt.Printf("Session %s %s\n", sess.ID, sess.Status)
	fmt.Printf("  mint:        %s\n", sess.Mint)
	fmt.Printf("  bundle:      %s\n", sess.BundleID)
	if sess.Degraded {
		fmt.Println("  mode:        DEGRADED (sequential submission, not atomic)")
	}
	fmt.Printf("  distributed: %s\n", formatSOL(sess.Totals.Distributed))
	fmt.Printf("  recovered:   %s\n", formatSOL(sess.Totals.Recovered))
	return nil
}

func runSessions(_ *cobra.Command, _ []string) error {
	runner, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sessions, err := runner.Store().List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-9s  %s  wallets=%d  distributed=%s  recovered=%s\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.Status, s.ID, len(s.Wallets),
			formatSOL(s.Totals.Distributed), formatSOL(s.Totals.Recovered))
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	runner, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sess, err := resolveSession(runner)
	if err != nil {
		return err
	}

	balances, err := runner.Analyze(cmd.Context(), sess)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s (%s)\n", sess.ID, sess.Status)
	var total uint64
	for _, b := range balances {
		fmt.Printf("  %s  %-20s  %s\n", b.PublicKey, b.Status, formatSOL(b.Lamports))
		total += b.Lamports
	}
	fmt.Printf("Total live balance: %s\n", formatSOL(total))
	return nil
}

func runRecover(cmd *cobra.Command, _ []string) error {
	runner, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sess, err := resolveSession(runner)
	if err != nil {
		return err
	}

	report, err := runner.Recover(cmd.Context(), sess)
	if err != nil {
		return err
	}
	fmt.Printf("Recovered %s from session %s (swept %d, skipped %d, failed %d)\n",
		formatSOL(report.Recovered), sess.ID, report.Swept, report.Skipped, report.Failed)
	return nil
}

func resolveSession(runner *bundler.Runner) (*session.Session, error) {
	if sessionPath != "" {
		return runner.Store().LoadFile(sessionPath)
	}
	return runner.Store().LoadLatest()
}

func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%.9f SOL", float64(lamports)/pumpfun.LamportsPerSOL)
}
