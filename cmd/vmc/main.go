// Command vmc reads a JSON system definition on stdin, runs a standard
// density-density simulation and the two Renyi-estimator simulations,
// and emits one JSON value per measurement per batch on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"vmc/internal/config"
	"vmc/internal/detmat"
	"vmc/internal/lattice"
	"vmc/internal/measure"
	"vmc/internal/metropolis"
	"vmc/internal/position"
	"vmc/internal/report"
	"vmc/internal/uploader"
	"vmc/internal/util"
	"vmc/internal/walk"
	"vmc/internal/wavefunction"
)

func main() {
	configPath := flag.String("config", "", "path to optional runtime config file")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	in, err := parseInput(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, in); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, in *simulationInput) error {
	rng := rand.New(rand.NewSource(*in.RNG.Seed))

	lat, err := lattice.New(in.System.Lattice.Size, 1)
	if err != nil {
		return err
	}
	bcs := make([]lattice.BoundaryCondition, len(in.System.Wavefunction.Orbitals.BoundaryConditions))
	for d, n := range in.System.Wavefunction.Orbitals.BoundaryConditions {
		bcs[d] = lattice.NewBoundaryCondition(1, n)
	}
	orbitals, err := wavefunction.NewFilledOrbitals(in.System.Wavefunction.Orbitals.Filling, lat, bcs)
	if err != nil {
		return err
	}

	engineOpts := detmat.Options{
		ExtraCareful:    cfg.Engine.ExtraCareful,
		Careful:         cfg.Engine.Careful,
		LowerCutoff:     cfg.Engine.LowerCutoff,
		UpperCutoff:     cfg.Engine.UpperCutoff,
		SafeLowerCutoff: cfg.Engine.SafeLowerCutoff,
	}

	newAmplitude := func() (*wavefunction.Handle, error) {
		sites := util.RandomCombination(orbitals.NumFilled(), lat.TotalSites(), rng)
		r := position.New([][]int{sites}, lat.TotalSites())
		wf, err := wavefunction.NewFreeFermion(r, orbitals, engineOpts)
		if err != nil {
			return nil, err
		}
		return wavefunction.NewHandle(wf), nil
	}

	subLengths := make([]int, lat.Dimensions())
	for d := range subLengths {
		subLengths[d] = cfg.SubsystemLength(d, lat.Length[d])
	}
	subsystem := lattice.NewSimpleSubsystem(subLengths)

	// standard walk with the density-density measurement
	standardHandle, err := newAmplitude()
	if err != nil {
		return err
	}
	density := measure.NewDensityDensity()
	standardSim, err := metropolis.New(walk.NewStandard(standardHandle),
		[]metropolis.Measurement{density}, cfg.InitializationSweeps, rng)
	if err != nil {
		return err
	}

	// renyi mod walk
	modHandle, err := newAmplitude()
	if err != nil {
		return err
	}
	modWalk, err := walk.NewRenyiMod(modHandle, subsystem, cfg.UpdateSwappedBeforeAccept)
	if err != nil {
		return err
	}
	modMeasurement := measure.NewRenyiMod()
	modSim, err := metropolis.New(modWalk, []metropolis.Measurement{modMeasurement}, cfg.InitializationSweeps, rng)
	if err != nil {
		return err
	}

	// renyi sign walk
	signHandle, err := newAmplitude()
	if err != nil {
		return err
	}
	signWalk, err := walk.NewRenyiSign(signHandle, subsystem, cfg.UpdateSwappedBeforeAccept)
	if err != nil {
		return err
	}
	signMeasurement := measure.NewRenyiSign()
	signSim, err := metropolis.New(signWalk, []metropolis.Measurement{signMeasurement}, cfg.InitializationSweeps, rng)
	if err != nil {
		return err
	}

	reporter := report.New(cfg.Output.Dir)
	runDir, err := reporter.NewRun()
	if err != nil {
		return err
	}
	results, err := reporter.NewResultWriter(runDir)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(results, "result writer")

	emit := func(v any) error {
		data, err := jsonLine(v)
		if err != nil {
			return err
		}
		fmt.Println(data)
		return results.Write(v)
	}

	for batch := 0; batch < cfg.Batches; batch++ {
		if err := standardSim.Iterate(cfg.SweepsPerBatch); err != nil {
			return err
		}
		if err := emit(density.Result()); err != nil {
			return err
		}
		if err := modSim.Iterate(cfg.SweepsPerBatch); err != nil {
			return err
		}
		if err := emit(modMeasurement.Get()); err != nil {
			return err
		}
		if err := signSim.Iterate(cfg.SweepsPerBatch); err != nil {
			return err
		}
		sign := signMeasurement.Get()
		if err := emit([]float64{real(sign), imag(sign)}); err != nil {
			return err
		}
		if cfg.Logging.Verbose {
			util.Infof("batch %d/%d: density %.1f%%, mod %.1f%% (%.4f), sign %.1f%%",
				batch+1, cfg.Batches,
				100*standardSim.AcceptanceRatio(),
				100*modSim.AcceptanceRatio(), modMeasurement.Get(),
				100*signSim.AcceptanceRatio())
		}
		if cfg.Engine.Careful {
			if err := modWalk.VerifySwappedSystem(); err != nil {
				return err
			}
			if err := signWalk.VerifySwappedSystem(); err != nil {
				return err
			}
		}
	}

	return finishRun(cfg, in, runDir, reporter, standardSim, modSim, signSim, modMeasurement)
}

func finishRun(cfg config.Config, in *simulationInput, runDir report.Run, reporter *report.Reporter,
	standardSim, modSim, signSim *metropolis.Simulation, modMeasurement *measure.RenyiMod) error {
	stats := []report.SimulationStats{
		simStats("density-density", standardSim),
		simStats("renyi-mod", modSim),
		simStats("renyi-sign", signSim),
	}
	report.BinStatistics(&stats[1], modMeasurement.Estimate())

	summary := report.Summary{
		Seed:                 *in.RNG.Seed,
		LatticeSize:          in.System.Lattice.Size,
		WavefunctionType:     in.System.Wavefunction.Type,
		InitializationSweeps: cfg.InitializationSweeps,
		Batches:              cfg.Batches,
		SweepsPerBatch:       cfg.SweepsPerBatch,
		Simulations:          stats,
		RunID:                runDir.ID,
		RunInfo:              cfg.RunInfo,
	}

	if cfg.Output.Archive {
		name, codec, err := reporter.WriteArchive(runDir)
		if err != nil {
			return err
		}
		summary.ArchiveName = name
		summary.ArchiveCodec = codec
	}

	if cfg.Storage.CloudEnabled() {
		up, err := buildUploader(cfg.Storage)
		if err != nil {
			util.Warnf("uploader unavailable: %v", err)
		} else if up.Enabled() {
			location, err := up.UploadDir(context.Background(), runDir.Dir)
			if err != nil {
				util.Warnf("upload failed: %v", err)
			} else {
				summary.UploadLocation = location
				util.Infof("results uploaded to %s", location)
			}
		}
	}

	return reporter.WriteSummary(runDir, summary)
}

func buildUploader(storage config.StorageConfig) (uploader.Uploader, error) {
	if storage.S3.Enabled {
		up, err := uploader.NewS3(storage.S3)
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	if storage.GCS.Enabled {
		up, err := uploader.NewGCS(storage.GCS)
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	return uploader.NoopUploader{}, nil
}

func simStats(name string, sim *metropolis.Simulation) report.SimulationStats {
	return report.SimulationStats{
		Name:               name,
		Steps:              sim.Steps(),
		StepsAccepted:      sim.StepsAccepted(),
		StepsFullyRejected: sim.StepsFullyRejected(),
		AcceptanceRatio:    sim.AcceptanceRatio(),
	}
}
