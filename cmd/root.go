package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/power2u/flexheat/app"
	"github.com/power2u/flexheat/config"
	"github.com/power2u/flexheat/core/scheduler"
	"github.com/power2u/flexheat/infra/logger"
)

var (
	cfgPath string
	zone    int
	at      string
)

var rootCmd = &cobra.Command{
	Use:           "flexheat",
	Short:         "District heating flexibility scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().IntVarP(&zone, "zone", "z", 1, "grid zone")
	rootCmd.PersistentFlags().StringVar(&at, "at", "", "stage time (RFC3339, default: current hour)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// stageTime parses --at, defaulting to the start of the current hour.
func stageTime(now time.Time) (time.Time, error) {
	if at == "" {
		return now.UTC().Truncate(time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t, nil
}

type stage func(*app.Service, context.Context, int, time.Time) (scheduler.Summary, error)

// runStage loads the configuration, builds the service and runs one stage.
func runStage(run stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		t, err := stageTime(time.Now())
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		svc, err := app.New(cfg)
		if err != nil {
			return err
		}
		log := logger.New("main")
		defer func() {
			if err := svc.Close(); err != nil {
				log.Errorf("service close: %v", err)
			}
		}()

		sum, err := run(svc, ctx, zone, t)
		if err != nil {
			return err
		}
		log.Infof("%s of grid zone %d at %s: %d succeeded, %d failed",
			sum.Stage, sum.GridZone, t.Format(time.RFC3339), sum.Succeeded, len(sum.Failures))
		for _, f := range sum.Failures {
			log.Warnf("%v", f)
		}
		if len(sum.Failures) > 0 && sum.Succeeded == 0 {
			return fmt.Errorf("%s failed for every subcentral", sum.Stage)
		}
		return nil
	}
}
