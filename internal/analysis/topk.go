package analysis

import (
	"fmt"
	"sort"
)

// TopComponents ranks grid cells by score and returns the top k as (row, col)
// pairs. The grid is flattened row-major; ties break toward the lower
// flattened index, so earlier rows win. With largest false the smallest cells
// rank first. k larger than the grid returns every cell.
func TopComponents(grid [][]float64, k int, largest bool) ([][2]int, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	cols := len(grid[0])

	type cell struct {
		idx   int
		value float64
	}
	flat := make([]cell, 0, len(grid)*cols)
	for r, row := range grid {
		if len(row) != cols {
			return nil, fmt.Errorf("ragged grid: row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, v := range row {
			flat = append(flat, cell{idx: r*cols + c, value: v})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].value == flat[j].value {
			return flat[i].idx < flat[j].idx
		}
		if largest {
			return flat[i].value > flat[j].value
		}
		return flat[i].value < flat[j].value
	})

	if k > len(flat) {
		k = len(flat)
	}
	out := make([][2]int, k)
	for i := 0; i < k; i++ {
		out[i] = [2]int{flat[i].idx / cols, flat[i].idx % cols}
	}
	return out, nil
}
