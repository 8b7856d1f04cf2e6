package physics

// Bounds is the rectangular region bodies are kept inside of.
type Bounds struct {
	Min Vector2 `json:"min" yaml:"min"`
	Max Vector2 `json:"max" yaml:"max"`
}

func NewBounds(min, max Vector2) Bounds { return Bounds{Min: min, Max: max} }

func (b Bounds) Width() float64  { return b.Max.X - b.Min.X }
func (b Bounds) Height() float64 { return b.Max.Y - b.Min.Y }
