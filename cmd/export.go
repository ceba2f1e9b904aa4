package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/power2u/flexheat/app"
	"github.com/power2u/flexheat/config"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/infra/kpi"
	"github.com/power2u/flexheat/infra/logger"
	"github.com/power2u/flexheat/pkg/export"
)

var (
	exportCustomer   int
	exportSubcentral int
	exportMode       string
	exportFormat     string
	kpiPath          string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored schedule of a subcentral for the day starting at --at",
	RunE:  exportSchedule,
}

var kpiCmd = &cobra.Command{
	Use:   "kpi-backfill",
	Short: "Rebuild flexibility KPIs from the dispatch of the day starting at --at",
	RunE:  backfillKPI,
}

func init() {
	exportCmd.Flags().IntVar(&exportCustomer, "customer", 0, "customer id")
	exportCmd.Flags().IntVar(&exportSubcentral, "subcentral", 0, "subcentral id")
	exportCmd.Flags().StringVar(&exportMode, "mode", "plan", "schedule mode (plan|execution)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv|json)")
	kpiCmd.Flags().StringVar(&kpiPath, "kpi-db", "flexkpi.db", "flexibility KPI database")
	rootCmd.AddCommand(exportCmd, kpiCmd)
}

func parseMode(s string) (mpc.Mode, error) {
	switch s {
	case mpc.Plan.String():
		return mpc.Plan, nil
	case mpc.Execution.String():
		return mpc.Execution, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// withService builds the service for one command and closes it afterwards.
func withService(fn func(context.Context, *app.Service, time.Time) error) error {
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
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(context.Background(), svc, t)
}

func exportSchedule(cmd *cobra.Command, _ []string) error {
	mode, err := parseMode(exportMode)
	if err != nil {
		return err
	}
	key := model.SubcentralKey{CustomerID: exportCustomer, SubcentralID: exportSubcentral}
	return withService(func(ctx context.Context, svc *app.Service, t time.Time) error {
		sc, err := svc.Schedule(ctx, key, mode, t, t.Add(24*time.Hour))
		if err != nil {
			return err
		}
		if len(sc.Steps) == 0 {
			return fmt.Errorf("no %s schedule stored for %s", mode, key)
		}
		switch exportFormat {
		case "csv":
			return export.WriteCSV(cmd.OutOrStdout(), sc)
		case "json":
			return export.WriteJSON(cmd.OutOrStdout(), sc)
		default:
			return fmt.Errorf("unknown format %q", exportFormat)
		}
	})
}

func backfillKPI(cmd *cobra.Command, _ []string) error {
	kpis, err := kpi.NewSQLiteStore(kpiPath)
	if err != nil {
		return err
	}
	defer func() { _ = kpis.Close() }()
	return withService(func(ctx context.Context, svc *app.Service, t time.Time) error {
		n, err := svc.BackfillKPI(ctx, kpis, zone, t, t.Add(24*time.Hour))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d dispatched steps of grid zone %d\n", n, zone)
		return err
	})
}
