package correlate

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// validFFT computes the valid region through the correlation theorem.
// Both signals are zero-padded to a power of two N >= len(cand); since every
// valid lag k satisfies k+i <= len(cand)-1 < N, the circular correlation
// IFFT(C · conj(R)) never wraps inside the first len(cand)-len(ref)+1 bins.
func validFFT(ref, cand []float64) []float64 {
	n := nextPow2(len(cand))

	r := make([]float64, n)
	copy(r, ref)
	c := make([]float64, n)
	copy(c, cand)

	R := fft.FFTReal(r)
	C := fft.FFTReal(c)
	for i := range C {
		C[i] *= cmplx.Conj(R[i])
	}
	corr := fft.IFFT(C)

	z := make([]float64, len(cand)-len(ref)+1)
	for k := range z {
		z[k] = real(corr[k])
	}
	return z
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
