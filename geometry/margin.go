package geometry

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Unit is the unit of a single margin length.
type Unit int

const (
	UnitPixels Unit = iota
	UnitPercent
)

// Length is a margin length in pixels or as a percentage of the root.
type Length struct {
	Value float64
	Unit  Unit
}

func (l Length) String() string {
	if l.Unit == UnitPercent {
		return strconv.FormatFloat(l.Value, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + "px"
}

// Margin holds the four offsets of a rootMargin value.
type Margin struct {
	Top, Right, Bottom, Left Length
}

func (m Margin) String() string {
	return strings.Join([]string{m.Top.String(), m.Right.String(), m.Bottom.String(), m.Left.String()}, " ")
}

// ParseMargin parses a rootMargin string using the CSS margin shorthand:
// one to four lengths, each in px or %. An empty string means "0px".
func ParseMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, errors.Errorf("rootMargin %q has more than four values", s)
	}

	lengths := make([]Length, len(fields))
	for i, f := range fields {
		l, err := parseLength(f)
		if err != nil {
			return Margin{}, errors.Wrapf(err, "rootMargin %q", s)
		}
		lengths[i] = l
	}

	switch len(lengths) {
	case 1:
		return Margin{lengths[0], lengths[0], lengths[0], lengths[0]}, nil
	case 2:
		return Margin{lengths[0], lengths[1], lengths[0], lengths[1]}, nil
	case 3:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[1]}, nil
	default:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[3]}, nil
	}
}

func parseLength(s string) (Length, error) {
	unit := UnitPixels
	num := s
	switch {
	case strings.HasSuffix(s, "px"):
		num = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		num = strings.TrimSuffix(s, "%")
		unit = UnitPercent
	case s == "0":
	default:
		return Length{}, errors.Errorf("length %q must be in pixels or as a percentage", s)
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, errors.Errorf("invalid length %q", s)
	}
	return Length{Value: v, Unit: unit}, nil
}
