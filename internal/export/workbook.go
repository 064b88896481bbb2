package export

import (
	"io"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ScheduleSheet   = "排课表"
	HistorySheet    = "迭代历史"
	ViolationsSheet = "违反统计"
)

// WriteWorkbook 把排课表、迭代历史和违反统计分别写入同一个工作簿的三张表
func WriteWorkbook(w io.Writer, report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	// 新文件自带的 Sheet1 直接改名为第一张表
	if err := f.SetSheetName(f.GetSheetName(0), ScheduleSheet); err != nil {
		return err
	}
	if err := writeSheet(f, ScheduleSheet, scheduleHeader, textCells(scheduleRows(report.Assignments))); err != nil {
		return err
	}

	if _, err := f.NewSheet(HistorySheet); err != nil {
		return err
	}
	if err := writeSheet(f, HistorySheet, historyHeader, historyCells(report.History)); err != nil {
		return err
	}

	keys := violationKeys(report.Violations)
	if _, err := f.NewSheet(ViolationsSheet); err != nil {
		return err
	}
	if err := writeSheet(f, ViolationsSheet, keys, [][]any{violationCells(keys, report.Violations)}); err != nil {
		return err
	}

	f.SetActiveSheet(0)

	_, err := f.WriteTo(w)
	return err
}

// 数值列写成数字单元格，表格里才能直接求和或画图
func historyCells(history []domain.GenerationRecord) [][]any {
	rows := make([][]any, 0, len(history))
	for _, record := range history {
		var improvement any
		if record.Improvement != nil {
			improvement = *record.Improvement
		}
		rows = append(rows, []any{
			record.Generation,
			record.Best,
			record.Average,
			record.Worst,
			improvement,
			record.MutationRate,
		})
	}
	return rows
}

func violationCells(keys []string, violations map[string]int) []any {
	row := make([]any, len(keys))
	for i, key := range keys {
		row[i] = violations[key]
	}
	return row
}

func textCells(rows [][]string) [][]any {
	cells := make([][]any, len(rows))
	for i, row := range rows {
		cells[i] = make([]any, len(row))
		for j, v := range row {
			cells[i][j] = v
		}
	}
	return cells
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	if err := writeRow(f, sheet, 1, textCells([][]string{header})[0]); err != nil {
		return err
	}
	for i, row := range rows {
		// 跳过表头行
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
