package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
)

type Format string

const (
	FormatScheduleCSV   Format = "csv"
	FormatWorkbook      Format = "xlsx"
	FormatViolationsCSV Format = "violations"
	FormatHistoryCSV    Format = "history"
)

func (f Format) ContentType() string {
	if f == FormatWorkbook {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string {
	if f == FormatWorkbook {
		return "xlsx"
	}
	return "csv"
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatScheduleCSV, FormatWorkbook, FormatViolationsCSV, FormatHistoryCSV:
		return f, nil
	case "":
		return FormatScheduleCSV, nil
	default:
		return "", fmt.Errorf("不支持的导出格式 %s", s)
	}
}

// Report 是一次运行中可以导出的全部内容
type Report struct {
	Assignments []domain.ScheduledActivity
	History     []domain.GenerationRecord
	Violations  map[string]int
}

func ReportFromRun(run *domain.SchedulingRun) *Report {
	return &Report{
		Assignments: run.Assignments,
		History:     run.History,
		Violations:  run.Violations,
	}
}

// Write 按指定格式写出报告
func Write(w io.Writer, format Format, report *Report) error {
	switch format {
	case FormatScheduleCSV:
		return WriteScheduleCSV(w, report.Assignments)
	case FormatHistoryCSV:
		return WriteHistoryCSV(w, report.History)
	case FormatViolationsCSV:
		return WriteViolationsCSV(w, report.Violations)
	case FormatWorkbook:
		return WriteWorkbook(w, report)
	default:
		return fmt.Errorf("不支持的导出格式 %s", format)
	}
}

var (
	scheduleHeader = []string{"Activity", "Room", "Time", "Facilitator"}
	historyHeader  = []string{"generation", "best", "avg", "worst", "improvement", "mutation_rate"}
)

func scheduleRows(assignments []domain.ScheduledActivity) [][]string {
	rows := make([][]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, []string{a.Activity, a.Room, a.TimeSlot, a.Facilitator})
	}
	return rows
}

func historyRows(history []domain.GenerationRecord) [][]string {
	rows := make([][]string, 0, len(history))
	for _, record := range history {
		improvement := ""
		if record.Improvement != nil {
			improvement = formatFloat(*record.Improvement)
		}
		rows = append(rows, []string{
			strconv.Itoa(record.Generation),
			formatFloat(record.Best),
			formatFloat(record.Average),
			formatFloat(record.Worst),
			improvement,
			formatFloat(record.MutationRate),
		})
	}
	return rows
}

// violationKeys 按固定顺序返回所有违反类型，不认识的键按字典序排在最后
func violationKeys(violations map[string]int) []string {
	keys := make([]string, 0, len(scheduler.ViolationKinds))
	known := make(map[string]bool, len(scheduler.ViolationKinds))
	for _, kind := range scheduler.ViolationKinds {
		keys = append(keys, string(kind))
		known[string(kind)] = true
	}

	extra := make([]string, 0)
	for key := range violations {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)

	return append(keys, extra...)
}

func violationRow(keys []string, violations map[string]int) []string {
	row := make([]string, len(keys))
	for i, key := range keys {
		row[i] = strconv.Itoa(violations[key])
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func WriteScheduleCSV(w io.Writer, assignments []domain.ScheduledActivity) error {
	return writeCSV(w, scheduleHeader, scheduleRows(assignments))
}

func WriteHistoryCSV(w io.Writer, history []domain.GenerationRecord) error {
	return writeCSV(w, historyHeader, historyRows(history))
}

// WriteViolationsCSV 写出一行表头和一行计数
func WriteViolationsCSV(w io.Writer, violations map[string]int) error {
	keys := violationKeys(violations)
	return writeCSV(w, keys, [][]string{violationRow(keys, violations)})
}

// ReadScheduleCSV 读取 WriteScheduleCSV 写出的排课表
func ReadScheduleCSV(r io.Reader) ([]domain.ScheduledActivity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(scheduleHeader)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("排课表为空")
	}

	for i, column := range records[0] {
		if !strings.EqualFold(column, scheduleHeader[i]) {
			return nil, fmt.Errorf("第 %d 列应为 %s，实际为 %s", i+1, scheduleHeader[i], column)
		}
	}

	rows := make([]domain.ScheduledActivity, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, domain.ScheduledActivity{
			Activity:    record[0],
			Room:        record[1],
			TimeSlot:    record[2],
			Facilitator: record[3],
		})
	}
	return rows, nil
}
