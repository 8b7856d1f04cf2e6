package server

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"github.com/zeusync/kinetic/internal/runner"
)

// Float is a float64 that encodes NaN and infinities as null, which plain
// JSON cannot represent. The core lets non-finite values propagate.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

type Vec struct {
	X Float `json:"x"`
	Y Float `json:"y"`
}

func newVec(v physics.Vector2) Vec { return Vec{X: Float(v.X), Y: Float(v.Y)} }

type BoxView struct {
	Min Vec `json:"min"`
	Max Vec `json:"max"`
}

// FrameView is the wire form of a runner.Frame.
type FrameView struct {
	Session  string        `json:"session"`
	Seq      uint64        `json:"seq"`
	DT       Float         `json:"dt"`
	Time     Float         `json:"time"`
	Hash     string        `json:"hash"`
	Gravity  Vec           `json:"gravity"`
	Bounds   *BoxView      `json:"bounds,omitempty"`
	Bodies   []BodyView    `json:"bodies"`
	Contacts []ContactView `json:"contacts,omitempty"`
}

type BodyView struct {
	Index         int       `json:"index"`
	Position      Vec       `json:"position"`
	Velocity      Vec       `json:"velocity"`
	Mass          Float     `json:"mass"`
	Shape         ShapeView `json:"shape"`
	Restitution   Float     `json:"restitution"`
	LinearDamping Float     `json:"linear_damping"`
	AABB          BoxView   `json:"aabb"`
}

type ShapeView struct {
	Type   string `json:"type"`
	Radius Float  `json:"radius,omitempty"`
	Size   *Vec   `json:"size,omitempty"`
}

type ContactView struct {
	Body        int    `json:"body"`
	Axis        string `json:"axis"`
	Side        string `json:"side"`
	Penetration Float  `json:"penetration"`
	Reflected   bool   `json:"reflected"`
}

func newFrameView(f runner.Frame) FrameView {
	v := FrameView{
		Session: f.Session,
		Seq:     f.Seq,
		DT:      Float(f.DT),
		Time:    Float(f.Time),
		Hash:    fmt.Sprintf("%016x", f.Hash),
		Gravity: newVec(f.Gravity),
		Bodies:  make([]BodyView, len(f.Bodies)),
	}
	if f.Bounds != nil {
		v.Bounds = &BoxView{Min: newVec(f.Bounds.Min), Max: newVec(f.Bounds.Max)}
	}
	for i, b := range f.Bodies {
		box := b.AABB()
		v.Bodies[i] = BodyView{
			Index:         i,
			Position:      newVec(b.Position),
			Velocity:      newVec(b.Velocity),
			Mass:          Float(b.Mass),
			Shape:         newShapeView(b.Shape),
			Restitution:   Float(b.Restitution),
			LinearDamping: Float(b.LinearDamping),
			AABB:          BoxView{Min: newVec(box.Min), Max: newVec(box.Max)},
		}
	}
	for _, c := range f.Contacts {
		v.Contacts = append(v.Contacts, ContactView{
			Body:        c.Body,
			Axis:        c.Axis.String(),
			Side:        c.Side.String(),
			Penetration: Float(c.Penetration),
			Reflected:   c.Reflected,
		})
	}
	return v
}

func newShapeView(s physics.ColliderShape) ShapeView {
	if s.Kind() == physics.ShapeRect {
		size := newVec(s.Size())
		return ShapeView{Type: s.Kind().String(), Size: &size}
	}
	return ShapeView{Type: s.Kind().String(), Radius: Float(s.Radius())}
}

// clientMessage is what WebSocket clients may send.
type clientMessage struct {
	Type  string          `json:"type"`
	Token string          `json:"token,omitempty"`
	Body  int             `json:"body"`
	Force physics.Vector2 `json:"force"`
}
