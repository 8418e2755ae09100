package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukit/gradebatch/internal/cli"
)

// clearEnv neutralizes every GRADEBATCH_* variable so tests see only
// flags and built-in defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GRADEBATCH_CONFIG", "GRADEBATCH_DATA_DIR", "GRADEBATCH_DB_PATH",
		"GRADEBATCH_AUDIT_PATH", "GRADEBATCH_OUTPUT_DIR", "GRADEBATCH_FORMAT",
		"GRADEBATCH_WORKERS", "GRADEBATCH_GRACE", "GRADEBATCH_CRON",
		"GRADEBATCH_HTTP_ADDR", "GRADEBATCH_LOG_LEVEL", "GRADEBATCH_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := cli.NewRootCmd("1.2.3")
	assert.Equal(t, "1.2.3", cmd.Version)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"export", "serve", "import", "seed", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestSeedThenExport(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "reports")

	out, err := run(t, "seed", "--students", "4", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 4 students")

	out, err = run(t, "export",
		"--data-dir", dataDir,
		"--format", "json",
		"--output", outDir,
		"--workers", "2",
		"--quiet",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "EXPORT SUMMARY")
	assert.Contains(t, out, "Succeeded:")

	for _, id := range []string{"STU001", "STU002", "STU003", "STU004"} {
		_, statErr := os.Stat(filepath.Join(outDir, id+".json"))
		require.NoError(t, statErr, "%s.json should exist", id)
	}
}

func TestExportCmd_UnknownFormat(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()

	_, err := run(t, "export",
		"--data-dir", dataDir,
		"--format", "xml",
		"--output", filepath.Join(dataDir, "reports"),
	)
	require.ErrorContains(t, err, "unknown export format")
}

func TestImportCmds(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()

	studentsCSV := filepath.Join(dataDir, "students.csv")
	require.NoError(t, os.WriteFile(studentsCSV, []byte(
		"studentID,name,age,email,phone,type\n"+
			"X1,Luka Gelashvili,20,luka@example.edu,555-0100,Regular\n",
	), 0o644))

	out, err := run(t, "import", "students", studentsCSV, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 of 1 rows")

	gradesCSV := filepath.Join(dataDir, "grades.csv")
	require.NoError(t, os.WriteFile(gradesCSV, []byte(
		"studentID,subjectName,subjectType,value\n"+
			"STU001,Geometry,Core Subject,88.5\n"+
			"STU999,Geometry,Core Subject,70\n",
	), 0o644))

	out, err = run(t, "import", "grades", gradesCSV, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 of 2 rows")
	assert.Contains(t, out, "student not found: STU999")
}

func TestConfigInitCmd(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gradebatch.yaml")
	t.Setenv("GRADEBATCH_CONFIG", path)

	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers: 4")

	_, err = run(t, "config", "init")
	require.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", "--force")
	require.NoError(t, err)
}
