package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/export"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/utils"
)

type evaluation struct {
	Fitness         float64        `json:"fitness"`
	Violations      map[string]int `json:"violations"`
	TotalViolations int            `json:"totalViolations"`
}

func newEvaluateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <schedule.csv>",
		Short: "计算 CSV 排课表的适应度",
		Long:  "计算 CSV 排课表的适应度和违反统计，文件格式与 run --export csv 相同，- 表示从标准输入读取。",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.loadCatalog()
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			rows, err := export.ReadScheduleCSV(in)
			if err != nil {
				return fmt.Errorf("无法读取排课表: %w", err)
			}
			if err := utils.ValidateAssignmentsWithCatalog(rows, catalog); err != nil {
				return err
			}

			schedule, err := scheduler.ScheduleFromRows(catalog, rows)
			if err != nil {
				return err
			}

			evaluator, err := scheduler.NewEvaluator(catalog, 0)
			if err != nil {
				return err
			}

			violations := evaluator.Violations(schedule)
			result := evaluation{
				Fitness:         evaluator.Score(schedule),
				Violations:      violations.ToMap(),
				TotalViolations: violations.Total(),
			}

			out := cmd.OutOrStdout()
			if opts.format == formatJSON {
				return writeJSON(out, result)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "适应度\t%.4f\n", result.Fitness)
			printViolations(tw, result.Violations)
			return tw.Flush()
		},
	}
}
