package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				maxK := pm.GetBucketDimension(np)
				histo[maxK]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // More buckets than indices collapses to one index per bucket
		pm := NewPartitionMap(32, 2)
		assert.Equal(t, 2, pm.ParallelDegree)
		assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, pm.Partitions)
	}
	{ // Groups match an ordered split into nearly equal contiguous groups, larger groups first
		pm := NewPartitionMap(3, 10)
		assert.Equal(t, [][2]int{{3, 6}, {7, 9}, {10, 12}}, pm.Groups(3))
		for n := 1; n < 40; n++ {
			for np := 1; np <= n; np++ {
				groups := NewPartitionMap(np, n).Groups(0)
				next := 0
				for _, g := range groups {
					assert.Equal(t, next, g[0])
					assert.True(t, g[1] >= g[0])
					next = g[1] + 1
				}
				assert.Equal(t, n, next)
			}
		}
	}
}
