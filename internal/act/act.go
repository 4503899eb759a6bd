// Package act defines atomic acts — semantic statements about one or two
// tubes — and the declarative activity-graph language that composes them
// into named multi-stage activities.
package act

import (
	"github.com/watchgrid/watchgrid/internal/packet"
)

// Single-subject and two-subject verb vocabularies. A definition using a
// verb outside these is a configuration error.
var (
	SingleActs = map[string]bool{
		"start": true, "end": true, "move": true, "stop": true,
		"use_phone": true, "carry": true, "use_computer": true,
		"give": true, "talk": true, "sit": true,
		"with_bike": true, "with_bag": true,
	}
	CrossActs = map[string]bool{
		"close": true, "near": true, "far": true,
		"approach": true, "leave": true, "cross": true,
	}
)

// Act is one atomic semantic statement: Name(Class1-Tube1[, Class2-Tube2])
// starting at FrameID. Tube ids are strings so the composer can fingerprint
// them with the camera id without changing type.
type Act struct {
	Name    string
	Class1  string
	Tube1   string
	Class2  string
	Tube2   string
	FrameID int
}

// New builds a single-subject act.
func New(name, class1, tube1 string, frameID int) Act {
	return Act{Name: name, Class1: class1, Tube1: tube1, FrameID: frameID}
}

// NewCross builds a two-subject act.
func NewCross(name, class1, tube1, class2, tube2 string, frameID int) Act {
	return Act{Name: name, Class1: class1, Tube1: tube1, Class2: class2, Tube2: tube2, FrameID: frameID}
}

// ToMeta renders the act for presentation metadata.
func (a Act) ToMeta() packet.ActMeta {
	m := packet.ActMeta{
		ID:         a.Class1 + "-" + a.Tube1,
		Label:      a.Name,
		ActFrameID: a.FrameID,
	}
	if a.Tube2 != "" {
		m.ID2 = a.Class2 + "-" + a.Tube2
	}
	return m
}

// ToLog renders the act for debug logs.
func (a Act) ToLog() string {
	s := a.Class1 + "-" + a.Tube1 + ":" + a.Name
	if a.Tube2 != "" {
		s += ":" + a.Class2 + "-" + a.Tube2
	}
	return s
}
