package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vmc/internal/estimate"
)

func TestNewRunCreatesDistinctDirectories(t *testing.T) {
	r := New(t.TempDir())
	run1, err := r.NewRun()
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	run2, err := r.NewRun()
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run1.Dir == run2.Dir || run1.ID == run2.ID {
		t.Fatalf("runs collide: %v vs %v", run1, run2)
	}
	if !strings.Contains(filepath.Base(run1.Dir), "run_0001_") {
		t.Fatalf("unexpected run dir name: %s", run1.Dir)
	}
}

func TestResultWriterStreamsJSONLines(t *testing.T) {
	r := New(t.TempDir())
	run, err := r.NewRun()
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	w, err := r.NewResultWriter(run)
	if err != nil {
		t.Fatalf("NewResultWriter: %v", err)
	}
	if err := w.Write([]float64{1, 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(0.5); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(run.Dir, "results.jsonl"))
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("line count: got=%d want=2", len(lines))
	}
	var arr []float64
	if err := json.Unmarshal([]byte(lines[0]), &arr); err != nil || len(arr) != 2 {
		t.Fatalf("first line not a 2-array: %q (%v)", lines[0], err)
	}
}

func TestSummaryAndArchive(t *testing.T) {
	r := New(t.TempDir())
	run, err := r.NewRun()
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	var b estimate.Binned[float64]
	for i := 0; i < 32; i++ {
		b.AddValue(float64(i % 3))
	}
	stats := SimulationStats{Name: "renyi-mod", Steps: 32}
	BinStatistics(&stats, &b)
	if len(stats.BinMeans) == 0 {
		t.Fatalf("bin means not filled")
	}

	summary := Summary{Seed: 7, WavefunctionType: "free-fermion", Simulations: []SimulationStats{stats}, RunID: run.ID}
	if err := r.WriteSummary(run, summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	name, codec, err := r.WriteArchive(run)
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if name != ArchiveName || codec != ArchiveCodec {
		t.Fatalf("archive naming: %s %s", name, codec)
	}
	if _, err := os.Stat(filepath.Join(run.Dir, name)); err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(run.Dir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("summary not valid json: %v", err)
	}
	if back.Seed != 7 || back.Simulations[0].Name != "renyi-mod" {
		t.Fatalf("summary round trip: %+v", back)
	}
}
