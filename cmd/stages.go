package cmd

import (
	"github.com/spf13/cobra"

	"github.com/power2u/flexheat/app"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve the day-ahead plan of every subcentral and store the aggregate plan",
	RunE:  runStage((*app.Service).Plan),
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Solve the execution program following the stored dispatch",
	RunE:  runStage((*app.Service).Execute),
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Allocate the grid zone dispatch order to subcentrals",
	RunE:  runStage((*app.Service).Dispatch),
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report realised flexibility for the period ending at --at",
	RunE:  runStage((*app.Service).Report),
}

func init() {
	rootCmd.AddCommand(planCmd, executeCmd, dispatchCmd, reportCmd)
}
