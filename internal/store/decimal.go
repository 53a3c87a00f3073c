package store

import (
	"math/big"
)

// Decimal128 is a fixed-scale decimal value. All values within one column
// share the same Scale; the unscaled mantissa is kept in a big.Int rather
// than a literal 128-bit pair of words, trading a little storage density
// for arithmetic that is trivially correct and easy to read — decimal
// columns are explicitly not SIMDable so there is no hot loop depending
// on the bits being inline.
type Decimal128 struct {
	Unscaled *big.Int
	Scale    int32
}

// NewDecimal128 builds a decimal from an integer mantissa and a scale, e.g.
// NewDecimal128(5000000, 2) == 50000.00.
func NewDecimal128(unscaled int64, scale int32) Decimal128 {
	return Decimal128{Unscaled: big.NewInt(unscaled), Scale: scale}
}

// DecimalFromFloat builds a decimal by scaling a float64 (test/demo
// convenience only; not used on any hot path).
func DecimalFromFloat(v float64, scale int32) Decimal128 {
	scaled := new(big.Float).Mul(big.NewFloat(v), new(big.Float).SetFloat64(pow10(scale)))
	i, _ := scaled.Int(nil)
	return Decimal128{Unscaled: i, Scale: scale}
}

func pow10(n int32) float64 {
	result := 1.0
	for i := int32(0); i < n; i++ {
		result *= 10
	}
	return result
}

// Float64 returns an approximate float64 view, for display/testing only.
func (d Decimal128) Float64() float64 {
	f := new(big.Float).SetInt(d.Unscaled)
	scale := new(big.Float).SetFloat64(pow10(d.Scale))
	f.Quo(f, scale)
	out, _ := f.Float64()
	return out
}

func (d Decimal128) rescaleTo(scale int32) *big.Int {
	if d.Scale == scale {
		return new(big.Int).Set(d.Unscaled)
	}
	diff := scale - d.Scale
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(diff))), nil)
	out := new(big.Int).Set(d.Unscaled)
	if diff > 0 {
		out.Mul(out, factor)
	} else {
		out.Quo(out, factor)
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Add returns d+other, rescaled to the wider of the two scales.
func (d Decimal128) Add(other Decimal128) Decimal128 {
	scale := d.Scale
	if other.Scale > scale {
		scale = other.Scale
	}
	sum := new(big.Int).Add(d.rescaleTo(scale), other.rescaleTo(scale))
	return Decimal128{Unscaled: sum, Scale: scale}
}

// Cmp compares d to other after rescaling to a common scale: -1, 0, or 1.
func (d Decimal128) Cmp(other Decimal128) int {
	scale := d.Scale
	if other.Scale > scale {
		scale = other.Scale
	}
	return d.rescaleTo(scale).Cmp(other.rescaleTo(scale))
}

// DivInt64 divides the unscaled mantissa by a positive integer count,
// keeping the same scale — used by Avg which divides a Sum by a row count.
func (d Decimal128) DivInt64(count int64) Decimal128 {
	if count == 0 {
		return d
	}
	q := new(big.Int).Quo(d.Unscaled, big.NewInt(count))
	return Decimal128{Unscaled: q, Scale: d.Scale}
}

// String renders the decimal in fixed-point form, e.g. "50000.00".
func (d Decimal128) String() string {
	if d.Scale <= 0 {
		return d.Unscaled.String()
	}
	s := d.Unscaled.String()
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for int32(len(s)) <= d.Scale {
		s = "0" + s
	}
	cut := int32(len(s)) - d.Scale
	out := s[:cut] + "." + s[cut:]
	if neg {
		out = "-" + out
	}
	return out
}
