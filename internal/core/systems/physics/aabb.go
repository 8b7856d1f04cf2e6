package physics

// AABB is an axis-aligned bounding box. Min <= Max is expected but not enforced.
type AABB struct {
	Min Vector2 `json:"min"`
	Max Vector2 `json:"max"`
}

func (b AABB) Size() Vector2 { return b.Max.Sub(b.Min) }

// Intersects reports whether the boxes overlap. Touching edges count as overlap.
func (b AABB) Intersects(o AABB) bool {
	return !(b.Max.X < o.Min.X ||
		b.Min.X > o.Max.X ||
		b.Max.Y < o.Min.Y ||
		b.Min.Y > o.Max.Y)
}
