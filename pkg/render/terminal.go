package render

import (
	"bufio"
	"io"
	"math"
	"strings"

	"github.com/opd-ai/rigid2d/pkg/engine"
	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Cell symbols used by TerminalRenderer
const (
	SymbolStatic   = '#'
	SymbolDynamic  = 'o'
	SymbolTouching = '@'
	SymbolJoint    = '+'
)

// TerminalRenderer rasterises body bounding boxes into an ASCII grid.
// World Y points up, so the top row of the grid is the highest world Y.
type TerminalRenderer struct {
	out       io.Writer
	width     int
	height    int
	buffer    [][]rune
	scale     float64 // world units per cell
	centerPos physics.Vector2D
	clearTerm bool
}

// NewTerminalRenderer creates a width×height grid where one cell spans scale world units
func NewTerminalRenderer(out io.Writer, width, height int, scale float64) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}
	r := &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
	}
	r.Clear()
	return r
}

// SetCenter sets the world position shown in the middle of the grid
func (r *TerminalRenderer) SetCenter(pos physics.Vector2D) {
	r.centerPos = pos
}

// SetClearScreen makes Present emit an ANSI clear before each frame
func (r *TerminalRenderer) SetClearScreen(enabled bool) {
	r.clearTerm = enabled
}

func (r *TerminalRenderer) worldToScreen(pos physics.Vector2D) (int, int) {
	x := int(math.Floor((pos.X-r.centerPos.X)/r.scale + float64(r.width)/2))
	y := int(math.Floor(float64(r.height)/2 - (pos.Y-r.centerPos.Y)/r.scale))
	return x, y
}

func (r *TerminalRenderer) set(x, y int, c rune) {
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.buffer[y][x] = c
	}
}

// Clear implements Renderer
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
}

// DrawBody implements Renderer. Non-finite bounds are skipped.
func (r *TerminalRenderer) DrawBody(body engine.BodyState) {
	if !body.Bounds.Min.IsFinite() || !body.Bounds.Max.IsFinite() {
		return
	}
	symbol := SymbolDynamic
	switch {
	case body.Static:
		symbol = SymbolStatic
	case body.Touching:
		symbol = SymbolTouching
	}

	x0, y1 := r.worldToScreen(body.Bounds.Min)
	x1, y0 := r.worldToScreen(body.Bounds.Max)
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, r.width-1), min(y1, r.height-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			r.buffer[y][x] = symbol
		}
	}
}

// DrawJoint implements Renderer
func (r *TerminalRenderer) DrawJoint(joint engine.JointState) {
	if !joint.Anchor.IsFinite() {
		return
	}
	x, y := r.worldToScreen(joint.Anchor)
	r.set(x, y, SymbolJoint)
}

// Present implements Renderer
func (r *TerminalRenderer) Present() error {
	w := bufio.NewWriter(r.out)
	if r.clearTerm {
		w.WriteString("\033[H\033[2J")
	}
	border := "+" + strings.Repeat("-", r.width) + "+\n"
	w.WriteString(border)
	for y := range r.buffer {
		w.WriteByte('|')
		w.WriteString(string(r.buffer[y]))
		w.WriteString("|\n")
	}
	w.WriteString(border)
	return w.Flush()
}

// String returns the grid rows without borders
func (r *TerminalRenderer) String() string {
	var sb strings.Builder
	for y := range r.buffer {
		sb.WriteString(string(r.buffer[y]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

