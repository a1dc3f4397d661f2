package decomp

import (
	"math"
	"sort"
)

const MiB = 1 << 20

// Options constrain the process layouts considered by Optimal.
type Options struct {
	Mvar, Maux int     // variables held per grid point
	Nmin       int     // smallest interior extent allowed per process along a split axis
	MBmin      float64 // smallest payload per process in MiB
}

// DefaultOptions matches the usual solver build: 8 variables, at least 32 cells per process and axis, 5 MiB
// payload per process.
func DefaultOptions() Options {
	return Options{Mvar: 8, Nmin: 32, MBmin: 5}
}

// Divisors returns the process counts that split n evenly into pieces of at least nmin cells. 1 is always
// included.
func Divisors(n, nmin int) (ps []int) {
	ps = []int{1}
	for p := 2; p <= n; p++ {
		if n%p == 0 && n/p >= nmin {
			ps = append(ps, p)
		}
	}
	return
}

// Payload is the number of bytes each process holds under layout procs.
func Payload(n, procs [3]int, opts Options) float64 {
	vars := opts.Mvar + opts.Maux
	if vars < 1 {
		vars = 1
	}
	p := 8 * float64(vars)
	for i := range n {
		p *= float64(n[i] / procs[i])
	}
	return p
}

// Spread measures how far the sub-domain of layout procs is from a cube, as the ratio of its longest to its
// shortest edge. Axes with a single cell are ignored, 1 is a perfect cube.
func Spread(n, procs [3]int) float64 {
	lo, hi := math.Inf(1), 0.
	for i := range n {
		if n[i] < 2 {
			continue
		}
		s := float64(n[i] / procs[i])
		lo, hi = math.Min(lo, s), math.Max(hi, s)
	}
	if hi == 0 {
		return 1
	}
	return hi / lo
}

// Optimal lists every feasible process layout for the interior mesh nx, ny, nz, ordered by process count, then by
// Spread, then by the number of processes along x and then y, larger first. best is the first layout with the
// most processes: its sub-domain is closest to a cube and ties split x before y before z.
func Optimal(nx, ny, nz int, opts Options) (options [][3]int, best [3]int) {
	var (
		n    = [3]int{nx, ny, nz}
		minB = opts.MBmin * MiB
	)
	for _, px := range Divisors(nx, opts.Nmin) {
		for _, py := range Divisors(ny, opts.Nmin) {
			for _, pz := range Divisors(nz, opts.Nmin) {
				procs := [3]int{px, py, pz}
				if procs != [3]int{1, 1, 1} && Payload(n, procs, opts) < minB {
					continue
				}
				options = append(options, procs)
			}
		}
	}
	sort.Slice(options, func(i, j int) bool { return before(n, options[i], options[j]) })
	most := count(options[len(options)-1])
	for _, procs := range options {
		if count(procs) == most {
			best = procs
			break
		}
	}
	return
}

func before(n, a, b [3]int) bool {
	if ca, cb := count(a), count(b); ca != cb {
		return ca < cb
	}
	if sa, sb := Spread(n, a), Spread(n, b); sa != sb {
		return sa < sb
	}
	if a[0] != b[0] {
		return a[0] > b[0]
	}
	return a[1] > b[1]
}

func count(procs [3]int) int { return procs[0] * procs[1] * procs[2] }
