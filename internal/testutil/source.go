package testutil

// FixedSource is a math/rand/v2 source whose Float64 draws always equal
// the configured fraction. Used to pin stochastic rounding in tests.
//
// Thread-safety: FixedSource is stateless and safe for concurrent use.
type FixedSource struct {
	bits uint64
}

// NewFixedSource returns a source that makes rand.Float64 return f,
// truncated to 53 bits. f must lie in [0, 1).
func NewFixedSource(f float64) *FixedSource {
	return &FixedSource{bits: uint64(f * (1 << 53))}
}

// Uint64 implements rand.Source. rand.Float64 keeps the low 53 bits.
func (s *FixedSource) Uint64() uint64 {
	return s.bits
}
