package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/observability"
	"github.com/xkilldash9x/regprobe/internal/reporting"
	"github.com/xkilldash9x/regprobe/internal/suite"
)

// ErrCasesFailed is returned when the run completed but at least one case failed.
var ErrCasesFailed = errors.New("one or more cases failed")

// suiteOptions lets tests replace the browser with a fake.
var suiteOptions []suite.Option

func newRunCmd() *cobra.Command {
	var (
		cases       []string
		concurrency int
		artifacts   string
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the registration workflow cases against the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if cmd.Flags().Changed("cases") {
				cfg.Suite.Cases = cases
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Suite.Concurrency = concurrency
			}
			if cmd.Flags().Changed("artifacts") {
				cfg.Artifacts.Dir = artifacts
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			opts := append([]suite.Option{suite.WithVersion(Version)}, suiteOptions...)
			if cfg.Database.URL != "" {
				st, cleanup, err := stores.Create(ctx, cfg, logger)
				if err != nil {
					logger.Warn("Run history disabled; could not open the store.", zap.Error(err))
				} else {
					defer cleanup()
					opts = append(opts, suite.WithStore(st))
				}
			}

			env, err := suite.NewEnvironment(cfg, logger, opts...)
			if err != nil {
				return err
			}
			run, err := suite.Run(ctx, env)
			fmt.Fprintln(cmd.OutOrStdout(), reporting.ConsoleSummary(run))
			if err != nil {
				return err
			}
			if run.Totals.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrCasesFailed, run.Totals.Failed, run.Totals.Total)
			}
			return nil
		},
	}

	runCmd.Flags().StringSliceVar(&cases, "cases", nil, fmt.Sprintf("cases to run (available: %v)", suite.CaseNames()))
	runCmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of cases to run at once")
	runCmd.Flags().StringVarP(&artifacts, "artifacts", "o", "", "directory for reports and screenshots")
	return runCmd
}
