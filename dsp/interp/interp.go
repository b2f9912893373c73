package interp

import "math"

// Hermite4 computes 4-point cubic Hermite interpolation between x0 and
// x1 at fraction t, with xm1 and x2 as the outer support points.
func Hermite4(t, xm1, x0, x1, x2 float32) float32 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// WarpPhase reparameterizes a normalized phase t in [0,1] using a rational
// curve parameterized by curve in [0,1]: identity at curve=0.5, log-like
// below, exponential-like above. C1-continuous family used to give
// envelope segments adjustable curvature.
func WarpPhase(t, curve float32) float32 {
	c := curve - 0.5
	flip := c < 0
	if flip {
		t = 1 - t
	}
	a := 128 * c * c
	t = (1 + a) * t / (1 + a*t)
	if flip {
		t = 1 - t
	}
	return t
}

// InterpolateWrap linearly interpolates inside table at fractional index
// phase*size, wrapping the index modulo len(table). phase need not be
// confined to [0,1); it is folded into range first.
func InterpolateWrap(table []float32, phase float32, size float32) float32 {
	n := len(table)
	if n == 0 {
		return 0
	}
	phase -= float32(math.Floor(float64(phase)))
	findex := phase * size
	i0 := int(findex)
	frac := findex - float32(i0)
	i0 %= n
	if i0 < 0 {
		i0 += n
	}
	i1 := (i0 + 1) % n
	return table[i0] + frac*(table[i1]-table[i0])
}
