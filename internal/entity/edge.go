package entity

import (
	"encoding/json"
	"fmt"
)

type Orientation string

const (
	OrientationH Orientation = "H"
	OrientationV Orientation = "V"
)

// Edge is a single line between two neighbouring dots.
type Edge struct {
	O   Orientation `json:"o"`
	Row int         `json:"row"`
	Col int         `json:"col"`
}

func (that Edge) HasValidOrientation() bool {
	return that.O == OrientationH || that.O == OrientationV
}

func (that Edge) String() string {
	return fmt.Sprintf("%s(%d,%d)", that.O, that.Row, that.Col)
}

// UnmarshalJSON accepts both "o" and "orientation" keys. A missing coordinate
// leaves the orientation empty so the edge is rejected as an invalid payload.
func (that *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		O           Orientation `json:"o"`
		Orientation Orientation `json:"orientation"`
		Row         *int        `json:"row"`
		Col         *int        `json:"col"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal edge: %w", err)
	}

	*that = Edge{O: raw.O}
	if that.O == "" {
		that.O = raw.Orientation
	}

	if raw.Row == nil || raw.Col == nil {
		that.O = ""
		return nil
	}

	that.Row, that.Col = *raw.Row, *raw.Col

	return nil
}
