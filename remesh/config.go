package remesh

import (
	"errors"
	"path/filepath"

	"github.com/notargets/remesh/InputParameters"
	"github.com/notargets/remesh/decomp"
	"github.com/notargets/remesh/grid"
	"github.com/notargets/remesh/snapshot"
)

var (
	ErrInvalidPrecision = errors.New("invalid precision")
	ErrInvalidSource    = errors.New("invalid source simulation")
	ErrDryRun           = errors.New("grid checked, remesh not executed")
	ErrEmptyRecord      = errors.New("record holds no values")
)

// ExitStatus maps the result of Run to a process exit status.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Config holds every setting of one remesh run. It is not modified once Run starts.
type Config struct {
	Src, Dst               string // simulation directories
	H5In, H5Out            string // snapshot file names
	SrcDatadir, DstDatadir string // snapshot directories relative to the simulations
	GridDir                string // directory of the companion grid file, relative to the destination
	Mult, Frac             [3]int
	SrcGhost, DstGhost     int
	Precision              string // "D" or "S"
	Symmetric              bool
	Ncpus                  [3]int // [1,1,1] selects the layout automatically
	ChunkBytes             int64  // fields larger than this are remeshed in chunks
	CheckGrid              bool   // stop after the grid and layout are written
	Nmin                   int
	MBmin                  float64
	Quiet                  bool
	Params                 *InputParameters.RemeshParameters
	Driver                 snapshot.Driver
	Backend                snapshot.Backend // nil selects HDF5 files
}

func DefaultConfig() Config {
	dopts := decomp.DefaultOptions()
	gopts := grid.DefaultOptions()
	return Config{
		H5In:       "var.h5",
		H5Out:      "var.h5",
		SrcDatadir: filepath.Join("data", "allprocs"),
		DstDatadir: filepath.Join("data", "allprocs"),
		GridDir:    "data",
		Mult:       gopts.Mult,
		Frac:       gopts.Frac,
		SrcGhost:   gopts.SrcGhost,
		DstGhost:   gopts.DstGhost,
		Precision:  "D",
		Symmetric:  gopts.Symmetric,
		Ncpus:      gopts.Ncpus,
		ChunkBytes: 1000 * decomp.MiB,
		Nmin:       dopts.Nmin,
		MBmin:      dopts.MBmin,
		Quiet:      true,
		Params:     InputParameters.NewRemeshParameters(),
	}
}

func (cfg Config) gridOptions(prec grid.Precision) grid.Options {
	return grid.Options{
		Mult:      cfg.Mult,
		Frac:      cfg.Frac,
		SrcGhost:  cfg.SrcGhost,
		DstGhost:  cfg.DstGhost,
		Symmetric: cfg.Symmetric,
		Ncpus:     cfg.Ncpus,
		Precision: prec,
	}
}

func (cfg Config) params() *InputParameters.RemeshParameters {
	if cfg.Params == nil {
		return InputParameters.NewRemeshParameters()
	}
	return cfg.Params
}

func (cfg Config) options(driver snapshot.Driver) (opts []snapshot.Option) {
	opts = append(opts, snapshot.WithDriver(driver))
	if cfg.Backend != nil {
		opts = append(opts, snapshot.WithBackend(cfg.Backend))
	}
	return
}
