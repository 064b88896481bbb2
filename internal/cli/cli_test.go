package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

var smallRun = []string{
	"run",
	"--population", "20",
	"--min-population", "4",
	"--min-generations", "3",
	"--max-generations", "10",
	"--elitism", "2",
	"--seed", "7",
}

func TestRun_JSONAndExport(t *testing.T) {
	output := filepath.Join(t.TempDir(), "nested", "schedule.csv")

	args := append([]string{"--format", "json"}, smallRun...)
	args = append(args, "--name", "测试", "--export", "csv", "--output", output)
	stdout, stderr, err := execute(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, stderr, output)

	var run domain.SchedulingRun
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.Equal(t, "测试", run.Name)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Len(t, run.Assignments, 11)
	assert.GreaterOrEqual(t, run.GenerationsRun, 3)
	assert.LessOrEqual(t, run.GenerationsRun, 10)
	assert.Len(t, run.History, run.GenerationsRun)
	require.NotNil(t, run.BestFitness)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 12)
	assert.Equal(t, "Activity,Room,Time,Facilitator", lines[0])

	// 导出的排课表重新评估后应得到相同的适应度
	stdout, _, err = execute(t, "", "--format", "json", "evaluate", output)
	require.NoError(t, err)

	var result evaluation
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.InDelta(t, *run.BestFitness, result.Fitness, 1e-9)
	assert.Equal(t, run.Violations, result.Violations)
}

func TestRun_TextWithoutExport(t *testing.T) {
	args := append(smallRun, "--export", "none", "--verbose")
	stdout, stderr, err := execute(t, "", args...)
	require.NoError(t, err)

	assert.Contains(t, stdout, "最佳适应度")
	assert.Contains(t, stdout, "SLA451")
	assert.Contains(t, stdout, "违反约束总数")
	assert.Contains(t, stderr, "第 0 代")
	assert.Contains(t, stderr, "适应度缓存")
	assert.NotContains(t, stderr, "已导出")
}

func TestRun_Reproducible(t *testing.T) {
	args := append([]string{"--format", "json"}, smallRun...)
	args = append(args, "--name", "same", "--export", "none")

	first, _, err := execute(t, "", args...)
	require.NoError(t, err)
	second, _, err := execute(t, "", args...)
	require.NoError(t, err)

	var a, b domain.SchedulingRun
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.History, b.History)
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := map[string][]string{
		"population too small": {"run", "--population", "2", "--min-population", "4"},
		"unknown crossover":    append(smallRun, "--crossover", "two_point"),
		"unknown export":       append(smallRun, "--export", "pdf"),
		"unknown format":       {"--format", "yaml", "catalog"},
		"missing catalog file": {"--catalog", "/does/not/exist.json", "catalog"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, "", args...)
			assert.Error(t, err)
		})
	}
}

func TestCatalog(t *testing.T) {
	stdout, _, err := execute(t, "", "catalog")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SLA101A")
	assert.Contains(t, stdout, "Frank 119")
	assert.Contains(t, stdout, "Tyler")

	stdout, _, err = execute(t, "", "--format", "json", "catalog")
	require.NoError(t, err)

	var catalog domain.Catalog
	require.NoError(t, json.Unmarshal([]byte(stdout), &catalog))
	assert.Len(t, catalog.Activities, 11)
	require.NoError(t, catalog.Validate())
}

func TestEvaluate_Stdin(t *testing.T) {
	csv := strings.Join([]string{
		"Activity,Room,Time,Facilitator",
		"SLA101A,Loft 310,10 AM,Glen",
		"SLA101B,Roman 201,11 AM,Glen",
		"SLA191A,Loft 206,2 PM,Glen",
		"SLA191B,Loft 310,3 PM,Glen",
		"SLA201,Roman 216,10 AM,Singer",
		"SLA291,Loft 206,11 AM,Singer",
		"SLA304,Beach 301,12 PM,Singer",
		"SLA394,Beach 201,1 PM,Singer",
		"SLA303,Slater 003,10 AM,Zeldin",
		"SLA449,Roman 201,12 PM,Zeldin",
		"SLA451,Frank 119,1 PM,Zeldin",
	}, "\n")

	stdout, _, err := execute(t, csv, "--format", "json", "evaluate", "-")
	require.NoError(t, err)

	var result evaluation
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.InDelta(t, 11.0, result.Fitness, 1e-9)
	assert.Zero(t, result.TotalViolations)

	stdout, _, err = execute(t, csv, "evaluate", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "11.0000")
}

func TestEvaluate_Rejects(t *testing.T) {
	_, _, err := execute(t, "Activity,Room,Time,Facilitator\nSLA101A,Loft 310,10 AM,Glen\n", "evaluate", "-")
	assert.Error(t, err)

	_, _, err = execute(t, "", "evaluate")
	assert.Error(t, err)
}
