package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"epi-model/logger"
	"epi-model/simulation"

	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "epi-model",
		Short:         "Agent-based epidemic simulation over weekly activity patterns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			lvl, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logger.SetLevel(lvl)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "debug, info, warn or error")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())

	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		seed       uint64
		days       float64
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run [base-path] [scenario-file]",
		Short: "Run a scenario, writing its outputs under base-path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			metadata, err := simulation.LoadScenarioMetadata(args[1])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				metadata.Seed = seed
			}
			if cmd.Flags().Changed("days") {
				metadata.Days = days
				if err := metadata.Validate(); err != nil {
					return err
				}
			}
			return runScenario(ctx, args[0], metadata, !noProgress)
		},
	}

	cmd.Flags().Uint64VarP(&seed, "seed", "s", 0, "override the scenario seed")
	cmd.Flags().Float64VarP(&days, "days", "d", 0, "override the simulated days")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func runScenario(ctx context.Context, basePath string, metadata *simulation.ScenarioMetadata, progress bool) (err error) {
	scenario := simulation.NewScenario(basePath, metadata)
	scenario.ShowProgress = progress

	if scenario.IsFinished() {
		logger.InfoKV(ctx, "scenario already finished", "scenario", metadata.UniqueName)
		return nil
	}

	defer func() {
		if closeErr := scenario.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := scenario.Init(ctx); err != nil {
		return err
	}
	if err := scenario.StepTillEnd(ctx); err != nil {
		// keep what was simulated so far
		if dumpErr := scenario.Dump(); dumpErr != nil {
			logger.ErrorKV(ctx, "failed to save partial results", "error", dumpErr)
		}
		return err
	}

	summary := scenario.Summary()
	logger.InfoKV(ctx, "results written",
		"dir", scenario.Serializer().Dir(),
		"infections", summary.Infections,
		"deaths", summary.Deaths,
	)
	return nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario-file]",
		Short: "Build the model of a scenario without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			metadata, err := simulation.LoadScenarioMetadata(args[0])
			if err != nil {
				return err
			}
			summary, err := simulation.ValidateScenario(metadata)
			if err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		},
	}
}
