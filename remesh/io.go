package remesh

import (
	"errors"
	"fmt"

	"github.com/notargets/remesh/InputParameters"
	"github.com/notargets/remesh/grid"
	"github.com/notargets/remesh/snapshot"
	"github.com/notargets/remesh/types"
)

// Names of the per axis records of the grid group, e.g. dx, dx_1, dx_tilde, Lx, Ox for axis x.
func axisKeys(name string) (d, d1, dTilde, l, o string) {
	return "d" + name, "d" + name + "_1", "d" + name + "_tilde", "L" + name, "O" + name
}

// readGrid loads the axes of a grid group. Missing derived records are recomputed from the coordinates, missing
// domain lengths and origins are taken from the run parameters.
func readGrid(g *snapshot.Group, rp *InputParameters.RemeshParameters) (gr grid.Grid, err error) {
	for dim, name := range grid.AxisNames {
		var (
			ax                  = grid.Axis{Name: name}
			dKey, d1, dt, lK, o = axisKeys(name)
		)
		if ax.Coord, err = floats(g, name); err != nil {
			return
		}
		if len(ax.Coord) < 2 {
			err = fmt.Errorf("axis %s has %d coordinates: %w", name, len(ax.Coord), grid.ErrDegenerateAxis)
			return
		}
		ax.Derive(grid.Double)
		ax.D = ax.Coord[1] - ax.Coord[0]
		ax.L, ax.O = rp.Lxyz[dim], rp.Xyz0[dim]
		for key, dst := range map[string]*float64{dKey: &ax.D, lK: &ax.L, o: &ax.O} {
			var f []float64
			if f, err = optionalFloats(g, key); err != nil {
				return
			}
			if len(f) > 0 {
				*dst = f[0]
			}
		}
		for key, dst := range map[string]*[]float64{d1: &ax.D1, dt: &ax.DTilde} {
			var f []float64
			if f, err = optionalFloats(g, key); err != nil {
				return
			}
			if len(f) == len(ax.Coord) {
				*dst = f
			}
		}
		gr.Axes[dim] = ax
	}
	return
}

func floats(g *snapshot.Group, name string) (f []float64, err error) {
	var ds *snapshot.Dataset
	if ds, err = g.Dataset(name); err != nil {
		return
	}
	return ds.Floats()
}

func optionalFloats(g *snapshot.Group, name string) (f []float64, err error) {
	if f, err = floats(g, name); errors.Is(err, snapshot.ErrNotFound) {
		err = nil
	}
	return
}

// writeGrid stores the axes into a grid group at precision prec.
func writeGrid(g *snapshot.Group, gr grid.Grid, prec grid.Precision) (err error) {
	single := prec == grid.Single
	for _, ax := range gr.Axes {
		dKey, d1, dt, l, o := axisKeys(ax.Name)
		for key, v := range map[string]types.Value{
			ax.Name: types.FloatValue(ax.Coord...),
			dKey:    types.FloatValue(ax.D),
			d1:      types.FloatValue(ax.D1...),
			dt:      types.FloatValue(ax.DTilde...),
			l:       types.FloatValue(ax.L),
			o:       types.FloatValue(ax.O),
		} {
			if _, err = g.Put(key, v, single); err != nil {
				return
			}
		}
	}
	return
}

func readSettings(root *snapshot.Group) (s grid.Settings, err error) {
	var g *snapshot.Group
	if g, err = root.Group("settings"); err != nil {
		return
	}
	return grid.NewSettings(g.Records())
}
