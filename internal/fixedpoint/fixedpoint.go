// Package fixedpoint implements the Q17.14 signed fixed-point
// representation used exclusively by the MLFQ scheduler for load_avg and
// per-thread recent_cpu. 17 integer bits, 14 fractional bits, packed into a
// plain int32.
package fixedpoint

// Q is the number of fractional bits (Q17.14: 17 integer + 14 fractional).
const Q = 14

// f is the fixed-point unit, 1<<14.
const f = 1 << Q

// T is a Q17.14 fixed-point value.
type T int32

// FromInt converts an integer to fixed-point.
func FromInt(n int) T {
	return T(n * f)
}

// ToIntTruncate converts to integer, truncating toward zero.
func (x T) ToIntTruncate() int {
	return int(x) / f
}

// ToIntNearest converts to integer, rounding to nearest (ties away from
// zero), matching conv_fp_to_int_rnd_nrst.
func (x T) ToIntNearest() int {
	if x >= 0 {
		return int(x+f/2) / f
	}
	return int(x-f/2) / f
}

// Add returns x+y, both fixed-point.
func (x T) Add(y T) T {
	return x + y
}

// Sub returns x-y, both fixed-point.
func (x T) Sub(y T) T {
	return x - y
}

// AddInt returns x+n, n an integer.
func (x T) AddInt(n int) T {
	return x + FromInt(n)
}

// SubInt returns x-n, n an integer.
func (x T) SubInt(n int) T {
	return x - FromInt(n)
}

// Mul returns x*y, both fixed-point; widens through int64 to avoid
// overflow in the intermediate product.
func (x T) Mul(y T) T {
	return T(int64(x) * int64(y) / f)
}

// MulInt returns x*n, n an integer.
func (x T) MulInt(n int) T {
	return x * T(n)
}

// Div returns x/y, both fixed-point; widens through int64 for the same
// reason as Mul.
func (x T) Div(y T) T {
	return T(int64(x) * f / int64(y))
}

// DivInt returns x/n, n an integer.
func (x T) DivInt(n int) T {
	return x / T(n)
}
