package physics

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// StateHash fingerprints the position, velocity and pending force of every
// body in order. Two worlds fed identical inputs hash identically.
func (w *World) StateHash() uint64 {
	buf := make([]byte, 0, len(w.bodies)*6*8)
	for i := range w.bodies {
		b := &w.bodies[i]
		for _, f := range [...]float64{
			b.Position.X, b.Position.Y,
			b.Velocity.X, b.Velocity.Y,
			b.force.X, b.force.Y,
		} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
	}
	return xxhash.Sum64(buf)
}
