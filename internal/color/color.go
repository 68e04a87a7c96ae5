// Package color provides basic color definitions for a chess game
package color

// Color represent a chess color as it appears on the wire
type Color string

// Possible color variations in a chess game
const (
	White Color = "white"
	Black Color = "black"
)

// Opp returns the opposite color for the given color.
func (c Color) Opp() Color {
	if c == White {
		return Black
	}

	return White
}

// Valid reports whether c is one of the two known colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}
