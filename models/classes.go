// Package models - Class metadata shared by postprocessing and rendering.
package models

import (
	"image/color"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/colornames"
)

// DefaultFallbackColor is drawn for classes without a mapping.
const DefaultFallbackColor = "yellow"

// DefaultClassColors maps the detector's class indices to display colors.
var DefaultClassColors = map[int]string{
	0:  "red",
	2:  "blue",
	3:  "purple",
	4:  "green",
	5:  "pink",
	6:  "black",
	7:  "white",
	8:  "orange",
	9:  "brown",
	10: "pink",
	11: "gray",
}

// UnknownClassID stands for a class index that is not a non-negative whole number.
// No color is ever mapped to it.
const UnknownClassID = -1

// DefaultTargetClasses are the classes of primary interest.
var DefaultTargetClasses = TargetClasses{0, 2}

// ParseColor parses an SVG 1.1 color keyword or a "#rrggbb" hex string.
//
// Arguments:
//   - s: The color, case-insensitive.
//
// Returns:
//   - color.RGBA: The opaque color.
//   - error: An error if s is neither a known name nor valid hex.
func ParseColor(s string) (color.RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}

	if strings.HasPrefix(name, "#") {
		c, err := colorful.Hex(name)
		if err != nil {
			return color.RGBA{}, errors.Wrapf(err, "parsing color %q", s)
		}
		r, g, b := c.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
	}

	return color.RGBA{}, errors.Errorf("unknown color %q", s)
}

// ClassColorMap resolves class indices to display colors.
//
// A ClassColorMap is immutable once built and safe for concurrent use.
type ClassColorMap struct {
	colors   map[int]color.RGBA
	fallback color.RGBA
}

// NewClassColorMap builds a map from already parsed colors. The input map is copied and
// negative ids are dropped.
func NewClassColorMap(colors map[int]color.RGBA, fallback color.RGBA) *ClassColorMap {
	m := &ClassColorMap{
		colors:   make(map[int]color.RGBA, len(colors)),
		fallback: fallback,
	}
	for id, c := range colors {
		if id < 0 {
			continue
		}
		m.colors[id] = c
	}
	return m
}

// ParseClassColorMap builds a map from color names or hex strings.
func ParseClassColorMap(names map[int]string, fallback string) (*ClassColorMap, error) {
	fb, err := ParseColor(fallback)
	if err != nil {
		return nil, errors.Wrap(err, "fallback color")
	}

	colors := make(map[int]color.RGBA, len(names))
	for id, name := range names {
		if id < 0 {
			return nil, errors.Errorf("class %d: class ids must not be negative", id)
		}
		c, err := ParseColor(name)
		if err != nil {
			return nil, errors.Wrapf(err, "class %d", id)
		}
		colors[id] = c
	}

	return NewClassColorMap(colors, fb), nil
}

// DefaultClassColorMap returns the built-in class colors.
func DefaultClassColorMap() *ClassColorMap {
	m, err := ParseClassColorMap(DefaultClassColors, DefaultFallbackColor)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the color mapped to id and whether a mapping exists.
func (m *ClassColorMap) Lookup(id int) (color.RGBA, bool) {
	c, ok := m.colors[id]
	return c, ok
}

// Resolve returns the color mapped to id, or the fallback when id is unmapped.
func (m *ClassColorMap) Resolve(id int) color.RGBA {
	if c, ok := m.Lookup(id); ok {
		return c
	}
	return m.fallback
}

// Fallback returns the color used for unmapped classes.
func (m *ClassColorMap) Fallback() color.RGBA {
	return m.fallback
}

// Classes returns the mapped class indices in ascending order.
func (m *ClassColorMap) Classes() []int {
	ids := make([]int, 0, len(m.colors))
	for id := range m.colors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TargetClasses lists the class indices of interest.
type TargetClasses []int

// Contains reports whether id is a target class.
func (t TargetClasses) Contains(id int) bool {
	for _, c := range t {
		if c == id {
			return true
		}
	}
	return false
}
