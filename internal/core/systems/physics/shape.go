package physics

import "fmt"

// ShapeKind tags the variant held by a ColliderShape.
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeRect
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapeRect:
		return "rect"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
}

// ColliderShape is a closed variant over a circle and an axis-aligned rectangle.
// Values are comparable; build them with Circle or Rect.
type ColliderShape struct {
	kind   ShapeKind
	radius float64
	size   Vector2
}

// Circle returns a circle shape of the given radius.
func Circle(radius float64) ColliderShape {
	return ColliderShape{kind: ShapeCircle, radius: radius}
}

// Rect returns a rectangle of full width size.X and full height size.Y,
// centered on the body position.
func Rect(size Vector2) ColliderShape {
	return ColliderShape{kind: ShapeRect, size: size}
}

func (s ColliderShape) Kind() ShapeKind { return s.kind }

// Radius is the circle radius; zero for rectangles.
func (s ColliderShape) Radius() float64 { return s.radius }

// Size is the rectangle full size; Zero for circles.
func (s ColliderShape) Size() Vector2 { return s.size }

// AABB returns the bounding box of the shape centered at position.
func (s ColliderShape) AABB(position Vector2) AABB {
	switch s.kind {
	case ShapeRect:
		half := s.size.Div(2)
		return AABB{Min: position.Sub(half), Max: position.Add(half)}
	default:
		r := Vector2{s.radius, s.radius}
		return AABB{Min: position.Sub(r), Max: position.Add(r)}
	}
}

func (s ColliderShape) String() string {
	if s.kind == ShapeRect {
		return fmt.Sprintf("rect(%gx%g)", s.size.X, s.size.Y)
	}
	return fmt.Sprintf("circle(%g)", s.radius)
}
