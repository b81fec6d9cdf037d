// Package render draws trend frames as PNG line charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sweeney/proxtrend/internal/trend"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when no sample lies inside the frame's window.
var ErrNoData = errors.New("render: no data in window")

// Default image size.
const (
	DefaultWidth  = 960
	DefaultHeight = 360
)

var (
	colorBackground = drawing.ColorFromHex("1e1e1e")
	colorForeground = drawing.ColorFromHex("e0e0e0")
	colorGrid       = drawing.ColorFromHex("3a3a3a")
	colorProx1      = drawing.ColorFromHex("00bfff") // deepskyblue
	colorProx2      = drawing.ColorFromHex("00ff00") // lime
)

// Renderer receives frames to draw. Draw is called from the sampling loop and
// must not block.
type Renderer interface {
	Draw(f trend.Frame)
}

// Chart keeps the latest frame and renders it on demand.
type Chart struct {
	width, height int

	mu    sync.RWMutex
	frame trend.Frame
	drawn bool
}

// NewChart creates a chart of the given size. Non-positive sizes fall back to
// the defaults.
func NewChart(width, height int) *Chart {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Chart{width: width, height: height}
}

// Draw replaces the current frame.
func (c *Chart) Draw(f trend.Frame) {
	c.mu.Lock()
	c.frame = f
	c.drawn = true
	c.mu.Unlock()
}

// Frame returns the current frame, or false if nothing has been drawn.
func (c *Chart) Frame() (trend.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.drawn
}

// WritePNG renders the current frame to w.
func (c *Chart) WritePNG(w io.Writer) error {
	f, ok := c.Frame()
	if !ok {
		return ErrNoData
	}
	ch, err := build(f, c.width, c.height)
	if err != nil {
		return err
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

// Clip returns the points of f that fall inside [Start, End], plus the
// nearest point on each side pinned to the window edge so the held level
// reaches the border.
func Clip(f trend.Frame) (x, y1, y2 []float64, err error) {
	n := f.Len()
	lo := sort.SearchFloat64s(f.X, f.Start)
	hi := sort.Search(n, func(i int) bool { return f.X[i] > f.End }) - 1
	if n == 0 || lo > hi {
		return nil, nil, nil, ErrNoData
	}

	size := hi - lo + 1
	x = make([]float64, 0, size+2)
	y1 = make([]float64, 0, size+2)
	y2 = make([]float64, 0, size+2)

	if lo > 0 {
		x = append(x, f.Start)
		y1 = append(y1, f.Y1[lo-1])
		y2 = append(y2, f.Y2[lo-1])
	}
	x = append(x, f.X[lo:hi+1]...)
	y1 = append(y1, f.Y1[lo:hi+1]...)
	y2 = append(y2, f.Y2[lo:hi+1]...)
	if hi < n-1 {
		x = append(x, f.End)
		y1 = append(y1, f.Y1[hi+1])
		y2 = append(y2, f.Y2[hi+1])
	}
	return x, y1, y2, nil
}

func build(f trend.Frame, width, height int) (chart.Chart, error) {
	x, y1, y2, err := Clip(f)
	if err != nil {
		return chart.Chart{}, err
	}

	start, end := f.Start, f.End
	if end <= start {
		// go-chart rejects a zero-width range.
		end = start + 1e-3
	}
	if len(x) == 1 {
		x = append(x, end)
		y1 = append(y1, y1[0])
		y2 = append(y2, y2[0])
	}

	axisStyle := chart.Style{FontColor: colorForeground, StrokeColor: colorForeground}
	gridStyle := chart.Style{StrokeColor: colorGrid, StrokeWidth: 1}

	ch := chart.Chart{
		Title:      f.Title,
		TitleStyle: chart.Style{FontColor: colorForeground},
		Width:      width,
		Height:     height,
		Background: chart.Style{
			FillColor: colorBackground,
			Padding:   chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: chart.Style{FillColor: colorBackground},
		XAxis: chart.XAxis{
			Name:           "Time (s)",
			NameStyle:      axisStyle,
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: start, Max: end},
			ValueFormatter: secondsFormatter,
		},
		YAxis: chart.YAxis{
			Name:      "Signal",
			NameStyle: axisStyle,
			Style:     axisStyle,
			Range:     &chart.ContinuousRange{Min: -0.5, Max: 1.5},
			Ticks: []chart.Tick{
				{Value: -0.5, Label: ""},
				{Value: 0, Label: "0"},
				{Value: 1, Label: "1"},
				{Value: 1.5, Label: ""},
			},
			GridMajorStyle: gridStyle,
			GridLines:      []chart.GridLine{{Value: 0}, {Value: 1}},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Prox1",
				XValues: x,
				YValues: y1,
				Style:   chart.Style{StrokeColor: colorProx1, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Prox2",
				XValues: x,
				YValues: y2,
				Style:   chart.Style{StrokeColor: colorProx2, StrokeWidth: 2},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch, chart.Style{
		FillColor:   colorBackground,
		FontColor:   colorForeground,
		StrokeColor: colorGrid,
	})}
	return ch, nil
}

func secondsFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return ""
}
