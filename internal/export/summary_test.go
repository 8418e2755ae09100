package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteSummary_FormatsReport(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, Summary{
		Total:        1250,
		Succeeded:    1248,
		Failed:       2,
		FailedIDs:    []string{"S07", "S31"},
		Elapsed:      12400 * time.Millisecond,
		AvgPerJob:    118 * time.Millisecond,
		Throughput:   100.65,
		Workers:      8,
		OutputDir:    "/tmp/reports",
		FilesWritten: 3744,
		BytesWritten: 12_800_000,
	})

	out := buf.String()
	assert.Contains(t, out, "EXPORT SUMMARY")
	assert.Contains(t, out, "Total reports:      1,250")
	assert.Contains(t, out, "Succeeded:          1,248")
	assert.Contains(t, out, "Failed:             2 (S07, S31)")
	assert.Contains(t, out, "Total time:         12.4s")
	assert.Contains(t, out, "Avg per report:     118ms")
	assert.Contains(t, out, "Throughput:         100.65 reports/sec")
	assert.Contains(t, out, "Workers:            8")
	assert.Contains(t, out, "Output directory:   /tmp/reports")
	assert.Contains(t, out, "Files written:      3,744")
	assert.Contains(t, out, "13 MB")
}

func TestWriteSummary_TruncatesLongFailureList(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, Summary{
		Total:     10,
		Failed:    7,
		FailedIDs: []string{"S01", "S02", "S03", "S04", "S05", "S06", "S07"},
	})

	out := buf.String()
	assert.Contains(t, out, "S05, ... 2 more")
	assert.NotContains(t, out, "S06")
}

func TestWriteSummary_NoFailures(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, Summary{Total: 3, Succeeded: 3})

	out := buf.String()
	assert.Contains(t, out, "Failed:             0\n")
	assert.NotContains(t, out, "Failed:             0 (")
}
