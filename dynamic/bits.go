package dynamic

import "math"

func floatBits(f float64) uint32  { return math.Float32bits(float32(f)) }
func doubleBits(f float64) uint64 { return math.Float64bits(f) }
