package grid

import (
	"fmt"
	"sort"

	"github.com/notargets/remesh/types"
)

// Settings mirrors the settings group of a snapshot. The mesh and process layout records are typed fields, every
// other record is carried verbatim in Extra.
type Settings struct {
	Nx, Ny, Nz             int // interior cells
	Mx, My, Mz             int // interior plus ghosts
	L1, L2, M1, M2, N1, N2 int // interior index bounds
	Nprocx, Nprocy, Nprocz int
	Precision              Precision
	Extra                  map[string]types.Value
}

// Names of the settings records owned by Settings fields. precision is stored as a byte string.
var settingsKeys = []string{
	"nx", "ny", "nz", "mx", "my", "mz",
	"l1", "l2", "m1", "m2", "n1", "n2",
	"nprocx", "nprocy", "nprocz",
}

const PrecisionKey = "precision"

func (s *Settings) fields() map[string]*int {
	return map[string]*int{
		"nx": &s.Nx, "ny": &s.Ny, "nz": &s.Nz,
		"mx": &s.Mx, "my": &s.My, "mz": &s.Mz,
		"l1": &s.L1, "l2": &s.L2, "m1": &s.M1, "m2": &s.M2, "n1": &s.N1, "n2": &s.N2,
		"nprocx": &s.Nprocx, "nprocy": &s.Nprocy, "nprocz": &s.Nprocz,
	}
}

// NewSettings builds Settings from the records of a settings group.
func NewSettings(records map[string]types.Value) (s Settings, err error) {
	s.Extra = make(map[string]types.Value)
	fields := s.fields()
	for key, val := range records {
		if key == PrecisionKey {
			if s.Precision, err = ParsePrecision(string(val.Bytes)); err != nil {
				return
			}
			continue
		}
		if ptr, ok := fields[key]; ok {
			if val.Kind == types.KindBytes || val.Len() == 0 {
				err = fmt.Errorf("settings record %q is not numeric", key)
				return
			}
			*ptr = val.Int(0)
			continue
		}
		s.Extra[key] = val.Copy()
	}
	for _, key := range []string{"nx", "ny", "nz"} {
		if _, ok := records[key]; !ok {
			err = fmt.Errorf("settings record %q missing", key)
			return
		}
	}
	return
}

// Records returns the settings as container records, excluding precision which is written separately.
func (s Settings) Records() (records map[string]types.Value) {
	records = make(map[string]types.Value, len(s.Extra)+len(settingsKeys))
	for key, val := range s.Extra {
		records[key] = val.Copy()
	}
	for key, ptr := range s.fields() {
		records[key] = types.IntValue(int64(*ptr))
	}
	return
}

// Keys returns the record names in sorted order.
func (s Settings) Keys() (keys []string) {
	for key := range s.Records() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return
}

func (s Settings) N() [3]int     { return [3]int{s.Nx, s.Ny, s.Nz} }
func (s Settings) M() [3]int     { return [3]int{s.Mx, s.My, s.Mz} }
func (s Settings) Nproc() [3]int { return [3]int{s.Nprocx, s.Nprocy, s.Nprocz} }

func (s Settings) NProcs() int { return s.Nprocx * s.Nprocy * s.Nprocz }

// SetMesh sets the interior counts and the dependent mesh counts and bounds for ghost width nghost.
func (s *Settings) SetMesh(n [3]int, nghost int) {
	s.Nx, s.Ny, s.Nz = n[0], n[1], n[2]
	s.Mx, s.My, s.Mz = s.Nx+2*nghost, s.Ny+2*nghost, s.Nz+2*nghost
	s.L1, s.L2 = nghost, s.Mx-1-nghost
	s.M1, s.M2 = nghost, s.My-1-nghost
	s.N1, s.N2 = nghost, s.Mz-1-nghost
}

func (s *Settings) SetNproc(ncpus [3]int) {
	s.Nprocx, s.Nprocy, s.Nprocz = ncpus[0], ncpus[1], ncpus[2]
}

// ExtraInt returns a numeric Extra record, or def when it is absent.
func (s Settings) ExtraInt(key string, def int) int {
	if val, ok := s.Extra[key]; ok && val.Kind != types.KindBytes && val.Len() > 0 {
		return val.Int(0)
	}
	return def
}

func (s Settings) Copy() (r Settings) {
	r = s
	r.Extra = make(map[string]types.Value, len(s.Extra))
	for key, val := range s.Extra {
		r.Extra[key] = val.Copy()
	}
	return
}
