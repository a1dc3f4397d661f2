package remesh

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/notargets/remesh/chunk"
	"github.com/notargets/remesh/comm"
	"github.com/notargets/remesh/decomp"
	"github.com/notargets/remesh/grid"
	"github.com/notargets/remesh/interp"
	"github.com/notargets/remesh/sim"
	"github.com/notargets/remesh/snapshot"
	"github.com/notargets/remesh/types"
	"github.com/notargets/remesh/utils"
)

type state uint8

const (
	validate state = iota
	buildGrid
	resolveDecomposition
	dryRun
	copyMetadata
	remeshFields
	finalize
	done
)

func (s state) String() string {
	return [...]string{"validate", "build grid", "resolve decomposition", "dry run", "copy metadata",
		"remesh fields", "finalize", "done"}[s]
}

// record is a value the parallel driver cannot hold, written after the parallel session is closed.
type record struct {
	group, name string
	v           types.Value
}

type runner struct {
	cfg    Config
	c      comm.Comm
	author bool          // rank 0 writes all metadata
	log    *logrus.Entry // every rank
	say    *logrus.Entry // progress, silent except on the first and last rank
	start  time.Time

	driver   snapshot.Driver
	prec     grid.Precision
	src, dst sim.Sim
	flags    grid.Flags

	in               *snapshot.Shared
	out              *snapshot.Shared
	srcSets, dstSets grid.Settings
	srcGrid, dstGrid grid.Grid
	srcProcs, nprocs int
	deferred         []record
}

// RunGroup runs the remesh on size ranks sharing one parallel container session.
func RunGroup(ctx context.Context, size int, cfg Config, log logrus.FieldLogger) error {
	return comm.Run(ctx, size, func(ctx context.Context, c comm.Comm) error {
		return Run(ctx, c, cfg, log)
	})
}

// Run remeshes the source snapshot onto the destination grid. Every rank of c must call Run with the same Config.
func Run(ctx context.Context, c comm.Comm, cfg Config, log logrus.FieldLogger) (err error) {
	r := &runner{
		cfg:    cfg,
		c:      c,
		author: comm.IsRoot(c),
		log:    log.WithField("rank", c.Rank()),
		start:  time.Now(),
		driver: cfg.Driver,
	}
	r.say = r.log
	if !comm.IsReporter(c) {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		r.say = logrus.NewEntry(silent)
	}
	if c.Size() > 1 {
		r.driver = snapshot.DriverParallel
	}
	r.say.WithField("time", r.start.Format(time.ANSIC)).Info("started")
	for st := validate; st != done; {
		r.log.WithField("state", st).Debug("entering")
		var next state
		if next, err = r.step(ctx, st); err != nil {
			return
		}
		st = next
	}
	end := time.Now()
	r.say.WithFields(logrus.Fields{
		"time":    end.Format(time.ANSIC),
		"seconds": end.Sub(r.start).Seconds(),
	}).Info("end")
	return
}

func (r *runner) step(ctx context.Context, st state) (state, error) {
	switch st {
	case validate:
		return buildGrid, r.validate(ctx)
	case buildGrid:
		return resolveDecomposition, r.buildGrid(ctx)
	case resolveDecomposition:
		if err := r.resolveDecomposition(ctx); err != nil {
			return st, err
		}
		if r.cfg.CheckGrid {
			return dryRun, nil
		}
		return copyMetadata, nil
	case dryRun:
		return done, r.dryRun(ctx)
	case copyMetadata:
		return remeshFields, r.copyMetadata(ctx)
	case remeshFields:
		return finalize, r.remeshFields(ctx)
	case finalize:
		return done, r.finalize(ctx)
	}
	return done, fmt.Errorf("unknown state %d", st)
}

func (r *runner) srcPath() string { return r.src.Join(r.cfg.SrcDatadir, r.cfg.H5In) }

func (r *runner) dstPath() string { return r.dst.Join(r.cfg.DstDatadir, r.cfg.H5Out) }

func (r *runner) gridPath() string { return r.dst.Join(r.cfg.GridDir, "grid.h5") }

func (r *runner) validate(ctx context.Context) (err error) {
	if r.prec, err = grid.ParsePrecision(r.cfg.Precision); err != nil {
		r.say.WithField("precision", r.cfg.Precision).Error("precision not valid")
		return fmt.Errorf("%w: %w", ErrInvalidPrecision, err)
	}
	if r.src, err = sim.Open(r.cfg.Src); err != nil {
		r.say.WithField("src", r.cfg.Src).Error("src is not a valid simulation path")
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if r.cfg.Dst == "" {
		return fmt.Errorf("%w: destination path empty", ErrInvalidSource)
	}
	r.flags = r.cfg.params().Flags()
	// The destination is prepared by rank 0 before any rank opens it
	dirs := []string{r.cfg.DstDatadir, r.cfg.GridDir}
	if r.author {
		if r.dst, err = sim.Prepare(r.cfg.Dst, dirs...); err != nil {
			return
		}
	}
	if err = r.c.Barrier(ctx); err != nil {
		return
	}
	if !r.author {
		if r.dst, err = sim.Prepare(r.cfg.Dst, dirs...); err != nil {
			return
		}
	}
	r.say.WithField("path", r.srcPath()).Info("opening src file")
	if r.in, err = snapshot.OpenShared(ctx, r.c, r.srcPath(), snapshot.Read, r.cfg.options(r.driver)...); err != nil {
		return
	}
	root := r.in.Root()
	if r.srcSets, err = readSettings(root); err != nil {
		return fmt.Errorf("%s settings: %w", r.srcPath(), err)
	}
	var g *snapshot.Group
	if g, err = root.Group("grid"); err != nil {
		return
	}
	if r.srcGrid, err = readGrid(g, r.cfg.params()); err != nil {
		return fmt.Errorf("%s grid: %w", r.srcPath(), err)
	}
	r.srcProcs = r.srcSets.NProcs()
	return
}

// put stores v, or defers it when the session cannot hold byte values.
func (r *runner) put(g *snapshot.Group, group, name string, v types.Value, single bool) (err error) {
	if v.Kind == types.KindBytes && r.driver == snapshot.DriverParallel {
		r.deferred = append(r.deferred, record{group: group, name: name, v: v.Copy()})
		return
	}
	_, err = g.Put(name, v, single)
	return
}

func (r *runner) buildGrid(ctx context.Context) (err error) {
	if r.dstGrid, r.dstSets, err = grid.Build(r.srcGrid, r.srcSets, r.flags, r.cfg.gridOptions(r.prec), r.say); err != nil {
		return
	}
	r.say.WithField("path", r.dstPath()).Info("opening dst file")
	var out *snapshot.Shared
	if out, err = snapshot.OpenShared(ctx, r.c, r.dstPath(), snapshot.Create, r.cfg.options(r.driver)...); err != nil {
		return
	}
	if r.author {
		if err = r.writeGridAndSettings(out.Root()); err != nil {
			return
		}
	}
	if err = out.Close(ctx); err != nil {
		return
	}
	r.say.Info("destination grid completed")
	return
}

func (r *runner) writeGridAndSettings(root *snapshot.Group) (err error) {
	var settings, g *snapshot.Group
	if settings, err = root.RequireGroup("settings"); err != nil {
		return
	}
	for key, v := range r.dstSets.Records() {
		if err = r.put(settings, "settings", key, v, false); err != nil {
			return
		}
	}
	if err = r.put(settings, "settings", grid.PrecisionKey, types.BytesValue([]byte(r.prec.Tag())), false); err != nil {
		return
	}
	if g, err = root.RequireGroup("grid"); err != nil {
		return
	}
	return writeGrid(g, r.dstGrid, r.prec)
}

func (r *runner) resolveDecomposition(ctx context.Context) (err error) {
	if r.out, err = snapshot.OpenShared(ctx, r.c, r.dstPath(), snapshot.Append, r.cfg.options(r.driver)...); err != nil {
		return
	}
	var (
		n            = r.dstSets.N()
		options, opt = decomp.Optimal(n[0], n[1], n[2], decomp.Options{
			Mvar:  r.dstSets.ExtraInt("mvar", 8),
			Maux:  r.dstSets.ExtraInt("maux", 0),
			Nmin:  r.cfg.Nmin,
			MBmin: r.cfg.MBmin,
		})
		ncpus = r.cfg.Ncpus
	)
	r.say.WithFields(logrus.Fields{
		"nmin":     r.cfg.Nmin,
		"options":  options,
		"new mesh": n,
	}).Info("remesh check grid: optional cpus up to min grid of nmin")
	if ncpus == [3]int{1, 1, 1} {
		ncpus = opt
	}
	r.dstSets.SetNproc(ncpus)
	r.nprocs = r.dstSets.NProcs()
	if r.author {
		var settings *snapshot.Group
		if settings, err = r.out.Root().Group("settings"); err != nil {
			return
		}
		for key, v := range map[string]int{"nprocx": ncpus[0], "nprocy": ncpus[1], "nprocz": ncpus[2]} {
			if _, err = settings.Put(key, types.IntValue(int64(v)), false); err != nil {
				return
			}
		}
	}
	if err = r.c.Barrier(ctx); err != nil {
		return
	}
	r.warnReduced()
	return
}

func (r *runner) warnReduced() {
	if r.srcProcs > r.nprocs {
		r.say.WithFields(logrus.Fields{
			"nprocs":   r.nprocs,
			"srcprocs": r.srcProcs,
			"mult":     r.cfg.Mult,
			"frac":     r.cfg.Frac,
		}).Warn("procs reduced, review mult and frac for more efficient parallel processing options")
	}
}

func (r *runner) dryRun(ctx context.Context) (err error) {
	if err = r.out.CloseSerial(ctx, r.storeDeferred); err != nil {
		return
	}
	if err = r.in.Close(ctx); err != nil {
		return
	}
	r.say.Info("to execute remesh disable check grid")
	return ErrDryRun
}

func (r *runner) copyMetadata(ctx context.Context) (err error) {
	var (
		src    = r.in.Root()
		dst    = r.out.Root()
		single = r.prec == grid.Single
	)
	if r.author {
		if err = r.copyUnits(src, dst); err != nil {
			return
		}
	}
	if err = r.c.Barrier(ctx); err != nil {
		return
	}
	if r.author {
		if err = r.writeCompanion(dst); err != nil {
			return
		}
	}
	if err = r.c.Barrier(ctx); err != nil {
		return
	}
	if r.author && src.Has("persist") {
		var from, to *snapshot.Group
		if from, err = src.Group("persist"); err != nil {
			return
		}
		if to, err = dst.RequireGroup("persist"); err != nil {
			return
		}
		for _, key := range from.DatasetNames() {
			var ds *snapshot.Dataset
			if ds, err = from.Dataset(key); err != nil {
				return
			}
			v := ds.Value()
			if v.Len() == 0 {
				continue
			}
			if err = r.put(to, "persist", key, v.Broadcast(r.nprocs), single); err != nil {
				return
			}
		}
	}
	if r.author {
		var ds *snapshot.Dataset
		if ds, err = src.Dataset("time"); err != nil {
			return
		}
		var t []float64
		if t, err = ds.Floats(); err != nil {
			return
		}
		if len(t) == 0 {
			return fmt.Errorf("%s time: %w", r.srcPath(), ErrEmptyRecord)
		}
		if _, err = dst.Put("time", types.FloatValue(r.prec.Round(t[0])), single); err != nil {
			return
		}
	}
	return r.c.Barrier(ctx)
}

// copyUnits writes the unit scalars at the destination precision and the unit system verbatim. Sources without
// a unit group take the unit factors of the run parameters.
func (r *runner) copyUnits(src, dst *snapshot.Group) (err error) {
	var (
		single  = r.prec == grid.Single
		to      *snapshot.Group
		records = make(map[string]types.Value)
	)
	if from, gerr := src.Group("unit"); gerr == nil {
		records = from.Records()
	} else {
		for key, val := range r.cfg.params().Units {
			records[key] = types.FloatValue(val)
		}
	}
	if len(records) == 0 {
		return
	}
	if to, err = dst.RequireGroup("unit"); err != nil {
		return
	}
	for key, v := range records {
		switch {
		case v.Kind == types.KindBytes:
			err = r.put(to, "unit", key, v, false)
		case v.Len() == 0:
			err = fmt.Errorf("unit %s: %w", key, ErrEmptyRecord)
		default:
			_, err = to.Put(key, types.FloatValue(r.prec.Round(v.Float(0))), single)
		}
		if err != nil {
			return
		}
	}
	return
}

// writeCompanion mirrors settings, grid and unit into the grid file next to the snapshot.
func (r *runner) writeCompanion(dst *snapshot.Group) (err error) {
	var f *snapshot.File
	if f, err = snapshot.Open(r.gridPath(), snapshot.Create, r.cfg.options(snapshot.DriverSerial)...); err != nil {
		return
	}
	for _, name := range []string{"settings", "grid", "unit"} {
		if !dst.Has(name) {
			continue
		}
		if err = dst.CopyTo(f.Root(), name); err != nil {
			return
		}
	}
	// The grid file is written serially, so it also takes the values the parallel session defers
	for _, rec := range r.deferred {
		var g *snapshot.Group
		if rec.group == "persist" {
			continue
		}
		if g, err = f.Root().RequireGroup(rec.group); err != nil {
			return
		}
		if _, err = g.Put(rec.name, rec.v, false); err != nil {
			return
		}
	}
	return f.Close()
}

// remeshFields writes the destination fields one at a time: a field is committed to the snapshot, and dropped
// from memory, as soon as it is complete. Whole fields are dealt to the ranks in turn, chunked fields are shared
// by every rank chunk by chunk.
func (r *runner) remeshFields(ctx context.Context) (err error) {
	var (
		from, to *snapshot.Group
		src      = r.srcGrid.Coords()
		dst      = r.dstGrid.Coords()
		m        = r.dstSets.M()
		n        = r.dstSets.N()
		single   = r.prec == grid.Single
		chunks   []chunk.Chunk
	)
	if from, err = r.in.Root().Group("data"); err != nil {
		return
	}
	keys := from.DatasetNames()
	if chunk.NeedsChunks(n, r.cfg.ChunkBytes) {
		counts := chunk.Counts(n, r.cfg.ChunkBytes, r.cfg.Nmin)
		chunks = chunk.Plan(src, dst, n, r.cfg.DstGhost, counts)
		r.say.WithField("nchunks", counts).Info("chunked remesh")
		r.log.WithFields(logrus.Fields{"n": n, "m": m}).Debug("destination mesh")
	}
	if r.author {
		if to, err = r.out.Root().RequireGroup("data"); err != nil {
			return
		}
		for _, key := range keys {
			if _, err = to.Create(key, []int{m[2], m[1], m[0]}, single); err != nil {
				return
			}
		}
	}
	// Every destination dataset exists before any rank writes
	if err = r.c.Barrier(ctx); err != nil {
		return
	}
	if to, err = r.out.Root().Group("data"); err != nil {
		return
	}
	for i, key := range keys {
		var in, out *snapshot.Dataset
		if in, err = from.Dataset(key); err != nil {
			return
		}
		if out, err = to.Dataset(key); err != nil {
			return
		}
		r.say.WithField("field", key).Info("remeshing")
		r.say.WithFields(logrus.Fields{"field": key, "shape": out.Shape()}).Info("writing")
		if chunks == nil {
			if i%r.c.Size() != r.c.Rank() {
				continue
			}
			if err = r.remeshWhole(in, out, src, dst); err != nil {
				return
			}
			if err = to.Commit(key); err != nil {
				return
			}
			r.logMemory(key)
			continue
		}
		for ci, ch := range chunks {
			if ci%r.c.Size() != r.c.Rank() {
				continue
			}
			if err = r.remeshChunk(in, out, ch, src, dst); err != nil {
				return
			}
		}
		// The field is complete once every rank has written its chunks
		if err = r.c.Barrier(ctx); err != nil {
			return
		}
		if r.author {
			if err = to.Commit(key); err != nil {
				return
			}
		}
		r.logMemory(key)
	}
	return
}

func (r *runner) logMemory(key string) {
	alloc, sys, gc := utils.MemUsage()
	r.log.WithFields(logrus.Fields{
		"field":     key,
		"alloc MiB": alloc,
		"sys MiB":   sys,
		"gc":        gc,
	}).Debug("field committed")
}

func (r *runner) remeshWhole(in, out *snapshot.Dataset, src, dst [3][]float64) (err error) {
	var F types.Field3D
	if F, err = in.Field(); err != nil {
		return
	}
	R := interp.Remesh(F, src, dst)
	r.checkFinite(in.Name(), R)
	return out.WriteWindow(types.FullWindow(R.Mz, R.My, R.Mx), R)
}

func (r *runner) remeshChunk(in, out *snapshot.Dataset, ch chunk.Chunk, src, dst [3][]float64) (err error) {
	var block types.Field3D
	if block, err = in.ReadWindow(ch.SrcWindow()); err != nil {
		return
	}
	r.log.WithFields(logrus.Fields{
		"field": in.Name(),
		"chunk": ch.String(),
		"src":   ch.SrcWindow(),
		"dst":   ch.DstWindow(),
	}).Debug("remeshing chunk")
	R := ch.Resample(block, src, dst)
	r.checkFinite(in.Name(), R)
	return out.WriteWindow(ch.OutWindow(), R)
}

func (r *runner) checkFinite(key string, F types.Field3D) {
	if utils.HasNaN(F.Data) {
		r.log.WithField("field", key).Warn("remeshed field holds NaN values")
	}
}

func (r *runner) finalize(ctx context.Context) (err error) {
	if err = r.out.CloseSerial(ctx, r.storeDeferred); err != nil {
		return
	}
	if err = r.in.Close(ctx); err != nil {
		return
	}
	r.warnReduced()
	return
}

// storeDeferred writes the values the parallel session could not hold. It runs on rank 0 while the snapshot is
// closed serially.
func (r *runner) storeDeferred(root *snapshot.Group) (err error) {
	for _, rec := range r.deferred {
		var g *snapshot.Group
		if g, err = root.RequireGroup(rec.group); err != nil {
			return
		}
		if _, err = g.Put(rec.name, rec.v, false); err != nil {
			return
		}
		r.log.WithField("record", path.Join(rec.group, rec.name)).Debug("deferred record written")
	}
	return
}
