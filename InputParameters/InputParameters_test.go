package InputParameters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemeshParameters(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Stratified box
lperi: [true, true, false]
lshift_origin_lower: [false, false, true]
xyz0: [-3.14159, -3.14159, -1.0]
Lxyz: [6.28318, 6.28318, 2.0]
Units:
  length: 3.086e21
  velocity: 1.0e5
`)
	input := NewRemeshParameters()
	if err = input.Parse(fileInput); err != nil {
		panic(err)
	}
	assert.Equal(t, "Stratified box", input.Title)
	assert.Equal(t, [3]bool{true, true, false}, input.Lperi)
	// Absent keys keep their defaults
	assert.Equal(t, [3]bool{true, true, true}, input.Lequidist)
	assert.Equal(t, 2., input.Lxyz[2])
	assert.Equal(t, 1.e5, input.Units["velocity"])
	flags := input.Flags()
	assert.False(t, flags.Periodic[2])
	assert.True(t, flags.ShiftOriginLower[2])
	assert.False(t, flags.ShiftOrigin[2])
	input.Print()
	{
		rp, err := ReadFile("")
		require.NoError(t, err)
		assert.Equal(t, NewRemeshParameters(), rp)
		path := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("lequidist: [true, false, true]\n"), 0644))
		rp, err = ReadFile(path)
		require.NoError(t, err)
		assert.False(t, rp.Flags().Equidistant[1])
		_, err = ReadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
		require.NoError(t, os.WriteFile(path, []byte("lperi: [true, "), 0644))
		_, err = ReadFile(path)
		assert.Error(t, err)
	}
}
