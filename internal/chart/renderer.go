// Package chart renders report rows as PNG bar charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"

	gochart "github.com/wcharczuk/go-chart/v2"
)

// ContentType is the media type of every rendered image
const ContentType = "image/png"

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("no data to chart")

// Bar is one labelled value
type Bar struct {
	Label string
	Value float64
}

// StackedBar is one labelled column made of named segments
type StackedBar struct {
	Label    string
	Segments []Bar
}

// Renderer draws chart images
type Renderer interface {
	Bars(title string, bars []Bar) ([]byte, error)
	StackedBars(title string, bars []StackedBar) ([]byte, error)
}

// PNGRenderer renders with go-chart
type PNGRenderer struct {
	Width  int
	Height int
}

const (
	barWidth   = 40
	barSpacing = 24
)

// NewPNGRenderer creates a renderer with a minimum canvas size
func NewPNGRenderer(width, height int) *PNGRenderer {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 512
	}
	return &PNGRenderer{Width: width, Height: height}
}

// width grows the canvas so every bar keeps its label
func (r *PNGRenderer) width(n int) int {
	if w := n*(barWidth+barSpacing) + 2*barWidth; w > r.Width {
		return w
	}
	return r.Width
}

// Bars renders a simple bar chart
func (r *PNGRenderer) Bars(title string, bars []Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	maxValue := 0.0
	values := make([]gochart.Value, len(bars))
	for i, b := range bars {
		values[i] = gochart.Value{Label: b.Label, Value: b.Value}
		if b.Value > maxValue {
			maxValue = b.Value
		}
	}
	if maxValue <= 0 {
		maxValue = 1
	}

	graph := gochart.BarChart{
		Title:      title,
		Width:      r.width(len(bars)),
		Height:     r.Height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
		},
		Bars: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

// StackedBars renders one stacked column per bar
func (r *PNGRenderer) StackedBars(title string, bars []StackedBar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	stacked := make([]gochart.StackedBar, len(bars))
	for i, b := range bars {
		values := make([]gochart.Value, len(b.Segments))
		for j, s := range b.Segments {
			values[j] = gochart.Value{Label: s.Label, Value: s.Value}
		}
		stacked[i] = gochart.StackedBar{Name: b.Label, Width: barWidth, Values: values}
	}

	graph := gochart.StackedBarChart{
		Title:      title,
		Width:      r.width(len(bars)),
		Height:     r.Height,
		BarSpacing: barSpacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		Bars:       stacked,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render stacked bar chart: %w", err)
	}
	return buf.Bytes(), nil
}
