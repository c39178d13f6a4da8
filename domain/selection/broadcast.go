package selection

import (
	"metabias/domain/core"
)

// Broadcast materialises scalar-or-vector parameters to a common length N.
// Every input must have length 1 or N, where N is the longest input. The
// returned slices are fresh copies; length-1 inputs are repeated. Names are
// used in error messages and must match vs in order.
func Broadcast(names []string, vs ...[]float64) (int, [][]float64, error) {
	if len(names) != len(vs) {
		return 0, nil, core.NewInvalidArgumentf("broadcast", "%d names for %d vectors", len(names), len(vs))
	}
	n := 0
	for i, v := range vs {
		if len(v) == 0 {
			return 0, nil, core.NewInvalidArgumentf(names[i], "must not be empty")
		}
		if len(v) > n {
			n = len(v)
		}
	}
	for i, v := range vs {
		if len(v) != 1 && len(v) != n {
			return 0, nil, core.NewInvalidArgumentf(names[i], "length %d cannot broadcast to %d", len(v), n)
		}
	}

	out := make([][]float64, len(vs))
	for i, v := range vs {
		m := make([]float64, n)
		if len(v) == 1 {
			for k := range m {
				m[k] = v[0]
			}
		} else {
			copy(m, v)
		}
		out[i] = m
	}
	return n, out, nil
}
