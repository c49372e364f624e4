// Package view keeps a viewer's render window: the most recent points of
// the selected symbol with a trailing moving-average overlay.
//
// A ClientView is driven by one goroutine, in message arrival order. It is
// not safe for concurrent use.
package view

import (
	"fmt"
	"strings"
	"time"

	"tickstream/internal/indicator"
	"tickstream/internal/model"
)

const (
	DefaultMaxPoints = 60
	DefaultPeriod    = 10
	MinPeriod        = 2
)

// Trend compares the latest price with its moving average.
type Trend int

const (
	TrendUp Trend = iota
	TrendDown
)

func (t Trend) String() string {
	if t == TrendDown {
		return "DOWN"
	}
	return "UP"
}

// Point is one rendered entry: a price and the moving average at the same index.
type Point struct {
	TS    int64   `json:"t"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
	SMA   float64 `json:"sma"`
}

// Config sizes the window.
type Config struct {
	MaxPoints int
	Period    int
	// Location formats point labels. Defaults to time.Local.
	Location *time.Location
}

// ClientView is the render window for one viewer.
type ClientView struct {
	cfg      Config
	renderer Renderer

	symbol string
	// prices holds the trailing prices the next average needs, which can
	// reach further back than the render window when Period-1 > MaxPoints.
	prices []float64
	points []Point
}

// New returns an empty view. A nil renderer discards frames.
func New(cfg Config, r Renderer) (*ClientView, error) {
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = DefaultMaxPoints
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Period < MinPeriod {
		return nil, fmt.Errorf("view: period must be at least %d, got %d", MinPeriod, cfg.Period)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if r == nil {
		r = discard{}
	}
	return &ClientView{cfg: cfg, renderer: r}, nil
}

// Symbol returns the selected symbol, or "" before Select.
func (v *ClientView) Symbol() string { return v.symbol }

// Period returns the moving-average period.
func (v *ClientView) Period() int { return v.cfg.Period }

// Select switches to symbol and clears the window until its history arrives.
func (v *ClientView) Select(symbol string) {
	v.symbol = strings.TrimSpace(symbol)
	v.prices = nil
	v.points = nil
	v.render()
}

// LoadHistory replaces the window with history for symbol. The average is
// computed over the whole history before truncating to MaxPoints. History
// for a symbol other than the selected one is ignored and reported false.
func (v *ClientView) LoadHistory(symbol string, history []model.Sample) bool {
	if v.symbol == "" {
		v.symbol = symbol
	} else if !strings.EqualFold(v.symbol, symbol) {
		return false
	}
	v.symbol = symbol

	prices := make([]float64, len(history))
	for i, s := range history {
		prices[i] = s.Price
	}
	averages := indicator.ComputeFull(prices, v.cfg.Period)

	keep := v.priceCap()
	if keep > len(prices) {
		keep = len(prices)
	}
	v.prices = append([]float64(nil), prices[len(prices)-keep:]...)

	start := 0
	if len(history) > v.cfg.MaxPoints {
		start = len(history) - v.cfg.MaxPoints
	}
	v.points = make([]Point, 0, len(history)-start)
	for i := start; i < len(history); i++ {
		v.points = append(v.points, v.point(history[i].TS, prices[i], averages[i]))
	}
	v.render()
	return true
}

// ApplyTick appends q if it belongs to the selected symbol and is newer than
// the last point. It reports whether the window changed.
func (v *ClientView) ApplyTick(q model.Quote) bool {
	if v.symbol == "" || !strings.EqualFold(q.Symbol, v.symbol) {
		return false
	}
	// a tick already contained in a freshly loaded history
	if n := len(v.points); n > 0 && q.TS <= v.points[n-1].TS {
		return false
	}

	sma := indicator.ExtendOne(v.prices, q.Price, v.cfg.Period)
	v.prices = append(v.prices, q.Price)
	v.points = append(v.points, v.point(q.TS, q.Price, sma))
	if excess := len(v.points) - v.cfg.MaxPoints; excess > 0 {
		v.points = append(v.points[:0], v.points[excess:]...)
	}
	if excess := len(v.prices) - v.priceCap(); excess > 0 {
		v.prices = append(v.prices[:0], v.prices[excess:]...)
	}
	v.render()
	return true
}

// ApplyBatch applies the quote of the selected symbol, if the batch has one.
func (v *ClientView) ApplyBatch(quotes []model.Quote) bool {
	changed := false
	for _, q := range quotes {
		if v.ApplyTick(q) {
			changed = true
		}
	}
	return changed
}

// SetPeriod changes the moving-average period and recomputes it over the
// retained prices only. Older prices are not refetched, so averages that
// would need them fall back to warm-up values.
func (v *ClientView) SetPeriod(period int) error {
	if period < MinPeriod {
		return fmt.Errorf("view: period must be at least %d, got %d", MinPeriod, period)
	}
	v.cfg.Period = period
	averages := indicator.ComputeFull(v.prices, period)
	offset := len(v.prices) - len(v.points)
	for i := range v.points {
		v.points[i].SMA = averages[offset+i]
	}
	v.render()
	return nil
}

// Latest returns the most recent point.
func (v *ClientView) Latest() (Point, bool) {
	if len(v.points) == 0 {
		return Point{}, false
	}
	return v.points[len(v.points)-1], true
}

// Trend is UP when the latest price is at or above its moving average.
// An empty window reports UP.
func (v *ClientView) Trend() Trend {
	p, ok := v.Latest()
	if !ok {
		return TrendUp
	}
	if p.Price >= p.SMA {
		return TrendUp
	}
	return TrendDown
}

// Len returns the number of points in the window.
func (v *ClientView) Len() int { return len(v.points) }

// Window returns a copy of the points, oldest first.
func (v *ClientView) Window() []Point {
	return append([]Point(nil), v.points...)
}

// Series returns the price and moving-average lines for a chart sink.
func (v *ClientView) Series() (price, average []ChartPoint) {
	price = make([]ChartPoint, len(v.points))
	average = make([]ChartPoint, len(v.points))
	for i, p := range v.points {
		sec := p.TS / 1000
		price[i] = ChartPoint{Time: sec, Value: p.Price}
		average[i] = ChartPoint{Time: sec, Value: p.SMA}
	}
	return price, average
}

// priceCap is how many trailing prices are kept: the render window, or
// enough for one full averaging window behind the next tick.
func (v *ClientView) priceCap() int {
	if n := v.cfg.Period - 1; n > v.cfg.MaxPoints {
		return n
	}
	return v.cfg.MaxPoints
}

func (v *ClientView) point(ts int64, price, sma float64) Point {
	return Point{
		TS:    ts,
		Label: time.UnixMilli(ts).In(v.cfg.Location).Format("15:04:05"),
		Price: price,
		SMA:   sma,
	}
}

func (v *ClientView) render() {
	price, average := v.Series()
	f := Frame{Symbol: v.symbol, Trend: v.Trend(), Price: price, Average: average}
	f.Latest, f.HasLatest = v.Latest()
	v.renderer.Render(f)
}
