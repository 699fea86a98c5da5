package viz

import (
	"math"
	"strings"
)

// dots maps a cell-local (row, col) to its braille bit; cells start at U+2800.
var dots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a braille grid of Width x Height cells, 2x4 dots each.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set sets the dot at (x, y), with y growing downward.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= dots[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine sets every dot on the segment between two dots, inclusive.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	n := max(absInt(x1-x0), absInt(y1-y0))
	if n == 0 {
		c.Set(x0, y0)
		return
	}
	fx, fy := float64(x1-x0)/float64(n), float64(y1-y0)/float64(n)
	for i := 0; i <= n; i++ {
		c.Set(x0+int(math.Round(fx*float64(i))), y0+int(math.Round(fy*float64(i))))
	}
}

// Polyline draws ys against xs scaled into the data box [0, xmax] x [ymin, ymax].
func (c *Canvas) Polyline(xs, ys []float64, xmax, ymin, ymax float64) {
	n := min(len(xs), len(ys))
	if n == 0 || xmax <= 0 || ymax <= ymin {
		return
	}
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	px := func(x float64) int { return int(math.Round(x / xmax * w)) }
	py := func(y float64) int { return int(math.Round(h - (y-ymin)/(ymax-ymin)*h)) }

	x0, y0 := px(xs[0]), py(ys[0])
	c.Set(x0, y0)
	for i := 1; i < n; i++ {
		x1, y1 := px(xs[i]), py(ys[i])
		c.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
