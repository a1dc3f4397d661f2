/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/remesh/InputParameters"
	"github.com/notargets/remesh/comm"
	"github.com/notargets/remesh/decomp"
	"github.com/notargets/remesh/remesh"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Remesh a snapshot into a destination simulation",
	Long: `
Reads the snapshot of the source simulation, builds the destination grid from the
refinement factors and writes the resampled snapshot with its grid, settings, units
and persistent values into the destination simulation.

remesh run --src old_run --dst new_run --mult 2,2,1 --precision S`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemesh(cmd, false)
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	addRemeshFlags(RunCmd)
}

// addRemeshFlags declares the flags shared by the run and check commands.
func addRemeshFlags(cmd *cobra.Command) {
	def := remesh.DefaultConfig()
	cmd.Flags().StringP("src", "s", "", "source simulation directory")
	cmd.Flags().StringP("dst", "d", "", "destination simulation directory, created when missing")
	cmd.Flags().String("h5in", def.H5In, "source snapshot file name")
	cmd.Flags().String("h5out", def.H5Out, "destination snapshot file name")
	cmd.Flags().String("srcdatadir", def.SrcDatadir, "snapshot directory of the source simulation")
	cmd.Flags().String("dstdatadir", def.DstDatadir, "snapshot directory of the destination simulation")
	cmd.Flags().String("griddir", def.GridDir, "directory of the destination grid file")
	cmd.Flags().IntSlice("mult", def.Mult[:], "per axis refinement multiplier")
	cmd.Flags().IntSlice("frac", def.Frac[:], "per axis refinement divisor")
	cmd.Flags().IntSlice("ncpus", def.Ncpus[:], "process layout of the destination, 1,1,1 picks one")
	cmd.Flags().Int("srcghost", def.SrcGhost, "ghost cells per side in the source")
	cmd.Flags().Int("dstghost", def.DstGhost, "ghost cells per side in the destination")
	cmd.Flags().StringP("precision", "p", def.Precision, "destination precision, D or S")
	cmd.Flags().Bool("symmetric", def.Symmetric, "centre non periodic grids on the source domain")
	cmd.Flags().Float64("chunksize", float64(def.ChunkBytes)/decomp.MiB, "MiB per field above which fields are remeshed in chunks")
	cmd.Flags().Int("nmin", def.Nmin, "minimum cells per process along a divided axis")
	cmd.Flags().Float64("mbmin", def.MBmin, "minimum MiB of variables per process")
	cmd.Flags().StringP("params", "I", "", "YAML file with the source run parameters, a periodic box by default")
	cmd.Flags().IntP("procs", "n", 1, "number of ranks sharing the snapshot files")
}

func runRemesh(cmd *cobra.Command, check bool) (err error) {
	v := viper.GetViper()
	if err = v.BindPFlags(cmd.Flags()); err != nil {
		return
	}
	var cfg remesh.Config
	if cfg, err = readConfig(v); err != nil {
		return
	}
	cfg.CheckGrid = check
	log := newLogger(cfg.Quiet)
	if !cfg.Quiet {
		cfg.Params.Print()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if procs := v.GetInt("procs"); procs > 1 {
		return remesh.RunGroup(ctx, procs, cfg, log)
	}
	return remesh.Run(ctx, comm.Single(), cfg, log)
}

func readConfig(v *viper.Viper) (cfg remesh.Config, err error) {
	cfg = remesh.DefaultConfig()
	cfg.Src, cfg.Dst = v.GetString("src"), v.GetString("dst")
	if len(cfg.Src) == 0 || len(cfg.Dst) == 0 {
		err = fmt.Errorf("must supply a source (-s, --src) and a destination (-d, --dst) simulation")
		return
	}
	cfg.H5In, cfg.H5Out = v.GetString("h5in"), v.GetString("h5out")
	cfg.SrcDatadir, cfg.DstDatadir = v.GetString("srcdatadir"), v.GetString("dstdatadir")
	cfg.GridDir = v.GetString("griddir")
	for key, dst := range map[string]*[3]int{"mult": &cfg.Mult, "frac": &cfg.Frac, "ncpus": &cfg.Ncpus} {
		if *dst, err = triple(v, key); err != nil {
			return
		}
	}
	cfg.SrcGhost, cfg.DstGhost = v.GetInt("srcghost"), v.GetInt("dstghost")
	cfg.Precision = v.GetString("precision")
	cfg.Symmetric = v.GetBool("symmetric")
	cfg.ChunkBytes = int64(v.GetFloat64("chunksize") * decomp.MiB)
	cfg.Nmin, cfg.MBmin = v.GetInt("nmin"), v.GetFloat64("mbmin")
	cfg.Quiet = v.GetBool("quiet")
	cfg.Params, err = InputParameters.ReadFile(v.GetString("params"))
	return
}

func triple(v *viper.Viper, key string) (t [3]int, err error) {
	s := v.GetIntSlice(key)
	if len(s) != 3 {
		err = fmt.Errorf("--%s needs three values, got %v", key, s)
		return
	}
	for i := range t {
		if s[i] < 1 {
			err = fmt.Errorf("--%s values must be positive, got %v", key, s)
			return
		}
		t[i] = s[i]
	}
	return
}
