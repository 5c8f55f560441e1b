package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// RollingWindowKernel is an O(1) amortized rolling min or max over `size`
// bars of a chosen source, backed by a monotonic deque (same pattern as
// internal/indicator's ring.go, duplicated here to keep structure free of a
// dependency on indicator's unexported types).
type RollingWindowKernel struct {
	size   int
	invert bool // true = rolling min
	src    bar.Source

	buf    []int
	bufVal []float64
	seq    int

	Value   float64
	version int
}

func NewRollingWindow(size int, invert bool, src bar.Source) *RollingWindowKernel {
	return &RollingWindowKernel{size: size, invert: invert, src: src, buf: make([]int, 0, size+1), bufVal: make([]float64, 0, size+1)}
}

func (k *RollingWindowKernel) better(a, b float64) bool {
	if k.invert {
		return a <= b
	}
	return a >= b
}

func (k *RollingWindowKernel) Push(b bar.Bar) map[string]any {
	v := b.Value(k.src)
	for len(k.buf) > 0 && k.better(v, k.bufVal[len(k.bufVal)-1]) {
		k.buf = k.buf[:len(k.buf)-1]
		k.bufVal = k.bufVal[:len(k.bufVal)-1]
	}
	k.buf = append(k.buf, k.seq)
	k.bufVal = append(k.bufVal, v)
	for len(k.buf) > 0 && k.buf[0] <= k.seq-k.size {
		k.buf = k.buf[1:]
		k.bufVal = k.bufVal[1:]
	}
	k.seq++
	prev := k.Value
	k.Value = k.bufVal[0]
	if k.Value != prev {
		k.version++
	}
	if k.seq < k.size {
		return map[string]any{}
	}
	return map[string]any{"value": k.Value}
}

func (k *RollingWindowKernel) Ready() bool  { return k.seq >= k.size }
func (k *RollingWindowKernel) Version() int { return k.version }
func (k *RollingWindowKernel) Reset()       { *k = *NewRollingWindow(k.size, k.invert, k.src) }
