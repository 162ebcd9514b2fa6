package surrogate

import "gonum.org/v1/gonum/mat"

// matrixPool recycles kernel matrices between refits. The optimizer
// refits its surrogate on every ask, so the same-size allocation is
// made hundreds of times per run.
type matrixPool struct {
	sym []*mat.SymDense
}

func newMatrixPool() *matrixPool {
	return &matrixPool{sym: make([]*mat.SymDense, 0, 4)}
}

// getSym returns a zeroed symmetric matrix of order n, reusing a
// pooled one when it fits.
func (p *matrixPool) getSym(n int) *mat.SymDense {
	for i := len(p.sym) - 1; i >= 0; i-- {
		m := p.sym[i]
		if m.SymmetricDim() == n {
			p.sym = append(p.sym[:i], p.sym[i+1:]...)
			m.Zero()
			return m
		}
	}
	return mat.NewSymDense(n, nil)
}

// putSym returns a matrix to the pool.
func (p *matrixPool) putSym(m *mat.SymDense) {
	if m == nil {
		return
	}
	p.sym = append(p.sym, m)
}
