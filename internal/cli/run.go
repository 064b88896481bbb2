package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/export"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/utils"
)

const exportNone = "none"

type runOptions struct {
	name           string
	population     int
	minPopulation  int
	minGenerations int
	maxGenerations int
	mutationRate   float64
	crossover      string
	elitism        int
	adaptive       bool
	seed           uint64
	exportFormat   string
	output         string
	verbose        bool
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "运行遗传算法生成排课表",
		Long:  "运行遗传算法生成排课表。没有通过参数指定的值使用 SCHEDULER_* 环境变量或其默认值。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts, ro)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&ro.name, "name", "n", "", "运行名称，默认自动生成")
	flags.IntVarP(&ro.population, "population", "p", 0, "种群大小")
	flags.IntVar(&ro.minPopulation, "min-population", 0, "允许的最小种群大小")
	flags.IntVar(&ro.minGenerations, "min-generations", 0, "最少迭代次数")
	flags.IntVar(&ro.maxGenerations, "max-generations", 0, "最大迭代次数")
	flags.Float64VarP(&ro.mutationRate, "mutation-rate", "m", 0, "初始变异概率")
	flags.StringVar(&ro.crossover, "crossover", "", "交叉方式: single_point 或 uniform")
	flags.IntVar(&ro.elitism, "elitism", 0, "精英数量")
	flags.BoolVar(&ro.adaptive, "adaptive", true, "是否自适应降低变异概率")
	flags.Uint64VarP(&ro.seed, "seed", "s", 0, "随机种子，0 表示随机")
	flags.StringVarP(&ro.exportFormat, "export", "e", string(export.FormatWorkbook), "导出格式: csv、xlsx、violations、history 或 none")
	flags.StringVarP(&ro.output, "output", "o", "", "导出文件路径，默认写入 EXPORT_DIRECTORY")
	flags.BoolVarP(&ro.verbose, "verbose", "v", false, "输出每一代的统计信息")

	return cmd
}

// parameters 只覆盖命令行中显式给出的参数
func (ro *runOptions) parameters(cmd *cobra.Command, cfg *config.Config) domain.RunParameters {
	p := runner.DefaultRunParameters(cfg)
	flags := cmd.Flags()

	if flags.Changed("population") {
		p.PopulationSize = ro.population
	}
	if flags.Changed("min-population") {
		cfg.Scheduler.MinPopulationSize = ro.minPopulation
	}
	if flags.Changed("min-generations") {
		p.MinimumGenerations = ro.minGenerations
	}
	if flags.Changed("max-generations") {
		p.MaximumGenerations = ro.maxGenerations
	}
	if flags.Changed("mutation-rate") {
		p.InitialMutationProbability = ro.mutationRate
	}
	if flags.Changed("crossover") {
		p.CrossoverMethod = domain.CrossoverMethod(ro.crossover)
	}
	if flags.Changed("elitism") {
		p.ElitismCount = ro.elitism
	}
	if flags.Changed("adaptive") {
		p.UseAdaptiveMutation = ro.adaptive
	}
	if flags.Changed("seed") {
		p.Seed = ro.seed
	}

	return p
}

func runSchedule(cmd *cobra.Command, opts *globalOptions, ro *runOptions) error {
	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		return fmt.Errorf("无法读取配置: %w", err)
	}

	catalog, err := opts.loadCatalog()
	if err != nil {
		return err
	}

	var format export.Format
	if ro.exportFormat != exportNone {
		if format, err = export.ParseFormat(ro.exportFormat); err != nil {
			return err
		}
	}

	params := ro.parameters(cmd, cfg)
	if err := utils.ValidateRunParameters(&params, cfg.Scheduler.MinPopulationSize); err != nil {
		return err
	}

	name := ro.name
	if name == "" {
		name = utils.DefaultRunName(time.Now())
	}

	var observer func(domain.GenerationRecord)
	if ro.verbose {
		stderr := cmd.ErrOrStderr()
		observer = func(record domain.GenerationRecord) {
			fmt.Fprintf(stderr, "第 %d 代: best=%.4f avg=%.4f worst=%.4f mutation=%g\n",
				record.Generation, record.Best, record.Average, record.Worst, record.MutationRate)
		}
	}

	start := time.Now()
	result, evaluator, err := runner.Solve(catalog, params, cfg.Scheduler.MinPopulationSize, cfg.Scheduler.CacheSize, observer)
	if err != nil {
		return err
	}
	finishedAt := time.Now()

	run := &domain.SchedulingRun{
		Name:       name,
		Status:     domain.RunStatusSucceeded,
		Parameters: params,
		CreatedAt:  start,
		FinishedAt: &finishedAt,
	}
	runner.ApplyResult(run, result)

	if ro.verbose {
		hits, misses := evaluator.CacheStats()
		fmt.Fprintf(cmd.ErrOrStderr(), "适应度缓存: 命中 %d 次，未命中 %d 次，耗时 %s\n", hits, misses, finishedAt.Sub(start).Round(time.Millisecond))
	}

	out := cmd.OutOrStdout()
	if opts.format == formatJSON {
		if err := writeJSON(out, run); err != nil {
			return err
		}
	} else if err := printRun(out, run); err != nil {
		return err
	}

	if ro.exportFormat == exportNone {
		return nil
	}

	path := ro.output
	if path == "" {
		path = filepath.Join(cfg.Export.Directory, utils.FileSlug(name)+"."+format.Extension())
	}
	if err := writeReport(path, format, export.ReportFromRun(run)); err != nil {
		return fmt.Errorf("导出失败: %w", err)
	}

	// json 输出时 stdout 只保留运行结果
	fmt.Fprintf(cmd.ErrOrStderr(), "已导出到 %s\n", path)
	return nil
}

func writeReport(path string, format export.Format, report *export.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := export.Write(f, format, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printRun(w io.Writer, run *domain.SchedulingRun) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "运行名称\t%s\n", run.Name)
	fmt.Fprintf(tw, "迭代次数\t%d\n", run.GenerationsRun)
	if run.BestFitness != nil {
		fmt.Fprintf(tw, "最佳适应度\t%.4f\n", *run.BestFitness)
	}
	if run.FinalMutationRate != nil {
		fmt.Fprintf(tw, "最终变异概率\t%g\n", *run.FinalMutationRate)
	}
	fmt.Fprintln(tw)

	printAssignments(tw, run.Assignments)
	fmt.Fprintln(tw)
	printViolations(tw, run.Violations)

	return tw.Flush()
}

func printAssignments(tw *tabwriter.Writer, rows []domain.ScheduledActivity) {
	fmt.Fprintln(tw, "活动\t教室\t时间\t负责人")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Activity, row.Room, row.TimeSlot, row.Facilitator)
	}
}

// printViolations 只列出非零的违反项
func printViolations(tw *tabwriter.Writer, violations map[string]int) {
	total := 0
	keys := make([]string, 0, len(violations))
	for key, n := range violations {
		total += n
		if n > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	fmt.Fprintf(tw, "违反约束总数\t%d\n", total)
	for _, key := range keys {
		fmt.Fprintf(tw, "  %s\t%d\n", key, violations[key])
	}
}
