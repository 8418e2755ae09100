package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/edukit/gradebatch/pkg/file"
	"github.com/edukit/gradebatch/pkg/log"
)

// Summary is the final report for one batch run.
type Summary struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	FailedIDs    []string      `json:"failed_ids,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	AvgPerJob    time.Duration `json:"avg_per_job"`
	Throughput   float64       `json:"throughput"`
	Workers      int           `json:"workers"`
	OutputDir    string        `json:"output_dir"`
	FilesWritten int           `json:"files_written"`
	BytesWritten int64         `json:"bytes_written"`
}

// Summary gathers the final counts, timings and output footprint of
// the run. It is meaningful once the run has finished; called earlier
// it reports progress so far.
func (r *Run[T]) Summary() Summary {
	counts := r.counters.counts()
	elapsed := r.Elapsed()
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}

	files, bytes, err := file.DirStats(r.outputDir)
	if err != nil {
		log.Warn("Could not size output directory %s: %v", r.outputDir, err)
	}

	return Summary{
		Total:        r.total,
		Succeeded:    counts.Completed,
		Failed:       counts.Failed,
		FailedIDs:    r.table.failedIDs(),
		Elapsed:      elapsed,
		AvgPerJob:    r.counters.avgDuration(),
		Throughput:   float64(counts.Completed) / secs,
		Workers:      r.pool.workers,
		OutputDir:    r.outputDir,
		FilesWritten: files,
		BytesWritten: bytes,
	}
}

const summaryRule = "========================================================================"

// WriteSummary renders the end-of-run report block.
func WriteSummary(w io.Writer, s Summary) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "\n%s\n", summaryRule)
	fmt.Fprintf(w, "%s\n", centerLine("EXPORT SUMMARY", len(summaryRule)))
	fmt.Fprintf(w, "%s\n", summaryRule)
	p.Fprintf(w, "  Total reports:      %d\n", s.Total)
	p.Fprintf(w, "  Succeeded:          %d\n", s.Succeeded)
	p.Fprintf(w, "  Failed:             %d%s\n", s.Failed, failedIDList(s.FailedIDs))
	fmt.Fprintf(w, "  Total time:         %.1fs\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "  Avg per report:     %dms\n", s.AvgPerJob.Milliseconds())
	fmt.Fprintf(w, "  Throughput:         %.2f reports/sec\n", s.Throughput)
	fmt.Fprintf(w, "  Workers:            %d\n", s.Workers)
	fmt.Fprintf(w, "  Output directory:   %s\n", s.OutputDir)
	p.Fprintf(w, "  Files written:      %d (%s)\n", s.FilesWritten, humanize.Bytes(uint64(s.BytesWritten)))
	fmt.Fprintf(w, "%s\n", summaryRule)
}

// failedIDList renders up to five failed IDs inline after the count.
func failedIDList(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	const show = 5
	if len(ids) <= show {
		return fmt.Sprintf(" (%s)", strings.Join(ids, ", "))
	}
	return fmt.Sprintf(" (%s, ... %d more)", strings.Join(ids[:show], ", "), len(ids)-show)
}

func centerLine(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
