package InputParameters

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/remesh/grid"
)

// Boundary and grid parameters of the source run, obtained from the YAML parameter file. Per axis lists are
// ordered x, y, z.
type RemeshParameters struct {
	Title             string             `json:"Title"`
	Lequidist         [3]bool            `json:"lequidist"`
	Lperi             [3]bool            `json:"lperi"`
	LshiftOrigin      [3]bool            `json:"lshift_origin"`
	LshiftOriginLower [3]bool            `json:"lshift_origin_lower"`
	Xyz0              [3]float64         `json:"xyz0"`
	Lxyz              [3]float64         `json:"Lxyz"`
	Units             map[string]float64 `json:"Units"` // unit factors used when the source has no unit group
}

// NewRemeshParameters returns the parameters of a periodic, equidistant box without origin shifts.
func NewRemeshParameters() (rp *RemeshParameters) {
	rp = &RemeshParameters{
		Title:     "periodic box",
		Lequidist: [3]bool{true, true, true},
		Lperi:     [3]bool{true, true, true},
	}
	return
}

// Parse overrides the receiver's values with those present in data.
func (rp *RemeshParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

// ReadFile parses the parameter file at path. An empty path leaves the defaults in place.
func ReadFile(path string) (rp *RemeshParameters, err error) {
	rp = NewRemeshParameters()
	if len(path) == 0 {
		return
	}
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	if err = rp.Parse(data); err != nil {
		err = fmt.Errorf("parsing %s: %w", path, err)
	}
	return
}

// Flags returns the per axis boundary flags consumed by the grid builder.
func (rp *RemeshParameters) Flags() grid.Flags {
	return grid.Flags{
		Periodic:         rp.Lperi,
		ShiftOrigin:      rp.LshiftOrigin,
		ShiftOriginLower: rp.LshiftOriginLower,
		Equidistant:      rp.Lequidist,
	}
}

func (rp *RemeshParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("%v\t= lequidist\n", rp.Lequidist)
	fmt.Printf("%v\t= lperi\n", rp.Lperi)
	fmt.Printf("%v\t= lshift_origin\n", rp.LshiftOrigin)
	fmt.Printf("%v\t= lshift_origin_lower\n", rp.LshiftOriginLower)
	fmt.Printf("%v\t= xyz0\n", rp.Xyz0)
	fmt.Printf("%v\t= Lxyz\n", rp.Lxyz)
	keys := make([]string, len(rp.Units))
	i := 0
	for k := range rp.Units {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Units[%s] = %v\n", key, rp.Units[key])
	}
}
