package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

func testReport() *Report {
	improvement := 12.5
	return &Report{
		Assignments: []domain.ScheduledActivity{
			{Activity: "SLA101A", Room: "Loft 310", TimeSlot: "10 AM", Facilitator: "Glen"},
			{Activity: "SLA101B", Room: "Roman 201", TimeSlot: "11 AM", Facilitator: "Lock"},
		},
		History: []domain.GenerationRecord{
			{Generation: 0, Best: 2.5, Average: -1.25, Worst: -4, MutationRate: 0.01},
			{Generation: 1, Best: 3, Average: -1.09375, Worst: -3, Improvement: &improvement, MutationRate: 0.01},
		},
		Violations: map[string]int{
			"room_conflicts":         2,
			"facilitator_underload":  1,
			"cross_course_same_time": 0,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"csv", "xlsx", "violations", "history"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatScheduleCSV, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	assert.Equal(t, "xlsx", FormatWorkbook.Extension())
	assert.Equal(t, "csv", FormatHistoryCSV.Extension())
}

func TestWriteScheduleCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScheduleCSV(&buf, testReport().Assignments))

	assert.Equal(t, "Activity,Room,Time,Facilitator\n"+
		"SLA101A,Loft 310,10 AM,Glen\n"+
		"SLA101B,Roman 201,11 AM,Lock\n", buf.String())
}

func TestReadScheduleCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScheduleCSV(&buf, testReport().Assignments))

	rows, err := ReadScheduleCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, testReport().Assignments, rows)

	rows, err = ReadScheduleCSV(strings.NewReader("activity, room, time, facilitator\nSLA303, Slater 003, 1 PM, Zeldin\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ScheduledActivity{{Activity: "SLA303", Room: "Slater 003", TimeSlot: "1 PM", Facilitator: "Zeldin"}}, rows)
}

func TestReadScheduleCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"wrong header": "Activity,Room,Slot,Facilitator\n",
		"short row":    "Activity,Room,Time,Facilitator\nSLA101A,Loft 310\n",
		"unterminated": "Activity,Room,Time,Facilitator\n\"SLA101A,Loft 310,10 AM,Glen\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadScheduleCSV(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, testReport().History))

	assert.Equal(t, "generation,best,avg,worst,improvement,mutation_rate\n"+
		"0,2.5,-1.25,-4,,0.01\n"+
		"1,3,-1.09375,-3,12.5,0.01\n", buf.String())
}

func TestWriteViolationsCSV(t *testing.T) {
	var buf bytes.Buffer
	violations := testReport().Violations
	violations["custom_rule"] = 3
	require.NoError(t, WriteViolationsCSV(&buf, violations))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	header := strings.Split(lines[0], ",")
	counts := strings.Split(lines[1], ",")
	require.Len(t, header, 14)
	require.Len(t, counts, 14)

	assert.Equal(t, "room_conflicts", header[0])
	assert.Equal(t, "2", counts[0])
	assert.Equal(t, "cross_course_building_mismatch", header[12])
	assert.Equal(t, "custom_rule", header[13])
	assert.Equal(t, "3", counts[13])
	assert.Equal(t, "facilitator_underload", header[5])
	assert.Equal(t, "1", counts[5])
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatWorkbook, testReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ScheduleSheet, HistorySheet, ViolationsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ScheduleSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Activity", "Room", "Time", "Facilitator"}, rows[0])
	assert.Equal(t, []string{"SLA101B", "Roman 201", "11 AM", "Lock"}, rows[2])

	rows, err = f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "12.5", rows[2][4])

	// 数值列是数字单元格，表头仍是文本
	for _, cell := range []string{"A2", "B2", "F3"} {
		cellType, err := f.GetCellType(HistorySheet, cell)
		require.NoError(t, err)
		assert.Equal(t, excelize.CellTypeUnset, cellType, cell)
	}
	headerType, err := f.GetCellType(HistorySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, headerType)

	rows, err = f.GetRows(ViolationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "room_conflicts", rows[0][0])
	assert.Equal(t, "2", rows[1][0])

	countType, err := f.GetCellType(ViolationsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeUnset, countType)
}

func TestWrite_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatHistoryCSV, testReport()))
	assert.True(t, strings.HasPrefix(buf.String(), "generation,"))

	buf.Reset()
	require.NoError(t, Write(&buf, FormatViolationsCSV, testReport()))
	assert.True(t, strings.HasPrefix(buf.String(), "room_conflicts,"))

	assert.Error(t, Write(&buf, Format("pdf"), testReport()))
}
