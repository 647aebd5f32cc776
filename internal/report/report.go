// Package report writes simulation result artifacts to disk: a
// results.jsonl stream, a summary.json with counters and bin-level
// statistics, and an optional zstd archive for upload.
package report

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/stat"

	"vmc/internal/estimate"
	"vmc/internal/runinfo"
	"vmc/internal/util"
)

// Reporter allocates run directories and writes artifacts into them.
type Reporter struct {
	OutputDir string
	runSeq    int
}

// Run describes one result directory.
type Run struct {
	ID  string
	Dir string
}

// Summary captures the persisted metadata for a run.
type Summary struct {
	Seed                 int64             `json:"seed"`
	LatticeSize          []int             `json:"lattice_size"`
	WavefunctionType     string            `json:"wavefunction_type"`
	InitializationSweeps int               `json:"initialization_sweeps"`
	Batches              int               `json:"batches"`
	SweepsPerBatch       int               `json:"sweeps_per_batch"`
	Simulations          []SimulationStats `json:"simulations"`
	UploadLocation       string            `json:"upload_location,omitempty"`
	RunID                string            `json:"run_id"`
	ArchiveName          string            `json:"archive_name,omitempty"`
	ArchiveCodec         string            `json:"archive_codec,omitempty"`
	RunInfo              *runinfo.BasicInfo `json:"run_info,omitempty"`
}

// SimulationStats summarizes one Metropolis chain.
type SimulationStats struct {
	Name               string    `json:"name"`
	Steps              int       `json:"steps"`
	StepsAccepted      int       `json:"steps_accepted"`
	StepsFullyRejected int       `json:"steps_fully_rejected"`
	AcceptanceRatio    float64   `json:"acceptance_ratio"`
	BinMeans           []float64 `json:"bin_means,omitempty"`
	BinMeanOfMeans     float64   `json:"bin_mean_of_means,omitempty"`
	BinStdDev          float64   `json:"bin_std_dev,omitempty"`
}

// New creates a reporter that writes under outputDir.
func New(outputDir string) *Reporter {
	return &Reporter{OutputDir: outputDir}
}

// NewRun allocates a fresh run directory named by sequence number and a
// sortable UUID.
func (r *Reporter) NewRun() (Run, error) {
	r.runSeq++
	runID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		runID = v7.String()
	}
	dir := filepath.Join(r.OutputDir, fmt.Sprintf("run_%04d_%s", r.runSeq, runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, err
	}
	return Run{ID: runID, Dir: dir}, nil
}

// ResultWriter streams JSON lines into results.jsonl inside a run
// directory.
type ResultWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewResultWriter opens the run's results.jsonl for writing.
func (r *Reporter) NewResultWriter(run Run) (*ResultWriter, error) {
	f, err := os.Create(filepath.Join(run.Dir, "results.jsonl"))
	if err != nil {
		return nil, err
	}
	return &ResultWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one JSON value as a line.
func (w *ResultWriter) Write(v any) error {
	return w.enc.Encode(v)
}

// Close flushes and closes the stream.
func (w *ResultWriter) Close() error {
	return w.file.Close()
}

// BinStatistics fills the bin-level fields of a SimulationStats from a
// binned estimator: per-level means plus their spread, which exposes
// autocorrelation when it grows with the bin size.
func BinStatistics(s *SimulationStats, b *estimate.Binned[float64]) {
	if b.NumBinLevels() == 0 {
		return
	}
	s.BinMeans = b.BinMeans()
	s.BinMeanOfMeans = stat.Mean(s.BinMeans, nil)
	if len(s.BinMeans) > 1 {
		s.BinStdDev = stat.StdDev(s.BinMeans, nil)
	}
}

// WriteSummary writes summary.json into the run directory.
func (r *Reporter) WriteSummary(run Run, summary Summary) error {
	f, err := os.Create(filepath.Join(run.Dir, "summary.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(summary)
}

const (
	// ArchiveName is the file name of the compressed run archive.
	ArchiveName = "run.tar.zst"
	// ArchiveCodec names the compression used for the archive.
	ArchiveCodec = "zstd"
)

// WriteArchive creates a zstd-compressed tar of the run directory,
// suitable for upload.
func (r *Reporter) WriteArchive(run Run) (name string, codec string, err error) {
	archivePath := filepath.Join(run.Dir, ArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(run.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(run.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return ArchiveName, ArchiveCodec, nil
}
