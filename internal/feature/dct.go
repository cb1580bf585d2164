package feature

import "math"

// dctBasis returns the first n rows of the orthonormal DCT-II matrix of size size.
func dctBasis(n, size int) [][]float64 {
	basis := make([][]float64, n)
	scale0 := math.Sqrt(1 / float64(size))
	scale := math.Sqrt(2 / float64(size))

	for k := range n {
		row := make([]float64, size)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := range size {
			row[i] = s * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(size)))
		}
		basis[k] = row
	}

	return basis
}
