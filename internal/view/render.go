package view

import "log/slog"

// ChartPoint is what a chart widget consumes. Time is Unix seconds.
type ChartPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Frame is a full redraw of the view.
type Frame struct {
	Symbol    string
	Latest    Point
	HasLatest bool
	Trend     Trend
	Price     []ChartPoint
	Average   []ChartPoint
}

// Renderer receives a frame after every change to the view.
type Renderer interface {
	Render(Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame)

func (f RendererFunc) Render(fr Frame) { f(fr) }

type discard struct{}

func (discard) Render(Frame) {}

// LogRenderer writes the latest point of each frame as a structured log line.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r LogRenderer) Render(f Frame) {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	if !f.HasLatest {
		l.Info("[view] waiting for data", "symbol", f.Symbol)
		return
	}
	l.Info("[view] "+f.Symbol,
		"time", f.Latest.Label,
		"price", f.Latest.Price,
		"sma", f.Latest.SMA,
		"trend", f.Trend.String(),
		"points", len(f.Price),
	)
}
