package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"progressreport/qa"
)

const (
	locationsJSON = `[
		{"qiLocationId": 1, "qiParentId": null, "name": "Quality"},
		{"qiLocationId": 2, "qiParentId": 1, "name": "Tower 5"},
		{"qiLocationId": 3, "qiParentId": 2, "name": "Slab 1"},
		{"qiLocationId": 4, "qiParentId": 2, "name": "Slab 2"},
		{"qiLocationId": 5, "qiParentId": 2, "name": "Footing F1"}
	]`
	statusesJSON = `[
		{"activitySeq": 10, "qiLocationId": 3, "statusName": "Completed"},
		{"activitySeq": 10, "qiLocationId": 4, "statusName": "Completed"},
		{"activitySeq": 10, "qiLocationId": 5, "statusName": "Completed"}
	]`
	activitiesJSON = `[{"activitySeq": 10, "activityName": "Concreting"}]`

	trackerCSV = "Activity ID,Activity Name,Actual Finish\n" +
		"A1,Slab Casting,2024-03-01\n" +
		"A2,Slab Casting,2024-03-02\n" +
		"A3,Slab Casting,\n"
)

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	qaPath := filepath.Join(dir, "qa")
	require.NoError(t, os.MkdirAll(qaPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(qaPath, qa.LocationsFile), []byte(locationsJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(qaPath, qa.StatusesFile), []byte(statusesJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(qaPath, qa.ActivitiesFile), []byte(activitiesJSON), 0o644))

	csvPath := filepath.Join(dir, "tower5.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(trackerCSV), 0o644))
	return qaPath, csvPath
}

// execute выполняет команду с чистыми значениями флагов
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	qaDir, trackerPath, towerName, towerList = "", "", "", nil
	variantName, rulesFile, outputPath, savePath = "", "", "", ""
	workerCount, chunkSize = 0, 0

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRunPrintsTotals(t *testing.T) {
	qaPath, csvPath := writeFixtures(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "pending.csv")
	db := filepath.Join(dir, "runs.db")

	output, err := execute(t, "run",
		"--qa-dir", qaPath,
		"--tracker", csvPath,
		"--tower", "Tower 5",
		"--variant", "standard",
		"--workers", "2",
		"--out", out,
		"--save", db)
	require.NoError(t, err)

	assert.Contains(t, output, "(standard)")
	assert.Contains(t, output, "Civil Works")
	assert.Contains(t, output, "completed=12 closed=3")
	assert.Contains(t, output, "exported to "+out)
	assert.Contains(t, output, "saved run ")

	exported, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(exported), "Tower,Category,Activity"))
	assert.FileExists(t, db)
}

func TestRunKeepsTowersFlag(t *testing.T) {
	qaPath, csvPath := writeFixtures(t)

	output, err := execute(t, "run",
		"--qa-dir", qaPath,
		"--tracker", csvPath,
		"--tower", "Tower 5",
		"--towers", "Tower 9,Tower 2")
	require.NoError(t, err)

	assert.Contains(t, output, "T9 ")
	assert.Contains(t, output, "T2 ")
	assert.Equal(t, []string{"Tower 9", "Tower 2"}, towerList)
}

func TestRunCSVRequiresTower(t *testing.T) {
	qaPath, csvPath := writeFixtures(t)

	_, err := execute(t, "run", "--qa-dir", qaPath, "--tracker", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tower")
}

func TestRunUnknownVariant(t *testing.T) {
	qaPath, csvPath := writeFixtures(t)

	_, err := execute(t, "run", "--qa-dir", qaPath, "--tracker", csvPath, "--tower", "Tower 5", "--variant", "phase-9")
	assert.Error(t, err)
}

func TestVariants(t *testing.T) {
	output, err := execute(t, "variants")
	require.NoError(t, err)

	assert.Contains(t, output, "stage-wise")
	assert.Contains(t, output, "tower-split")
	assert.Contains(t, output, "* standard")
}
