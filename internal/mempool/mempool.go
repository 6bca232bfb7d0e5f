// Package mempool provides sized sync.Pool-backed []float64 and []int
// buffers. The beam search takes a []int of label indices from it for the
// pruning sort every timestep.
package mempool

import "sync"

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	intPools     sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next 256-element bucket to reduce churn from
// alphabets of slightly different sizes.
func sizeClass(n int) int {
	const step = 256
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

// GetFloat64 retrieves a []float64 buffer of at least n elements. The
// returned slice has length n but may have larger capacity. The caller must
// return it via PutFloat64 when done.
func GetFloat64(n int) []float64 {
	cls := sizeClass(n)
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]float64, n)
	}
	buf, ok := p.Get().([]float64)
	if !ok || cap(buf) < cls {
		buf = make([]float64, cls)
	}
	return buf[:n]
}

// PutFloat64 returns a buffer to the pool. Passing nil is a no-op.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetInt retrieves a []int buffer of at least n elements. The caller must
// return it via PutInt when done.
func GetInt(n int) []int {
	cls := sizeClass(n)
	pAny, _ := intPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]int, n)
	}
	buf, ok := p.Get().([]int)
	if !ok || cap(buf) < cls {
		buf = make([]int, cls)
	}
	return buf[:n]
}

// PutInt returns a buffer to the pool. Passing nil is a no-op.
func PutInt(buf []int) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := intPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
