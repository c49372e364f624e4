package view

import (
	"testing"
	"time"

	"tickstream/internal/indicator"
	"tickstream/internal/model"
)

// ──────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────

func newView(t *testing.T, maxPoints, period int) (*ClientView, *[]Frame) {
	t.Helper()
	var frames []Frame
	v, err := New(Config{MaxPoints: maxPoints, Period: period, Location: time.UTC}, RendererFunc(func(f Frame) {
		frames = append(frames, f)
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v, &frames
}

func history(n int, start int64, base float64) []model.Sample {
	out := make([]model.Sample, n)
	for i := range out {
		out[i] = model.Sample{TS: start + int64(i)*1000, Price: base + float64(i%7) - 3}
	}
	return out
}

func prices(samples []model.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Price
	}
	return out
}

// ──────────────────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────────────────

func TestNew_RejectsShortPeriod(t *testing.T) {
	if _, err := New(Config{Period: 1}, nil); err == nil {
		t.Error("expected error for period 1")
	}
	v, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if v.Period() != DefaultPeriod {
		t.Errorf("Period() = %d, want %d", v.Period(), DefaultPeriod)
	}
}

// ──────────────────────────────────────────────────────────────
// History
// ──────────────────────────────────────────────────────────────

func TestLoadHistory_TruncatesAligned(t *testing.T) {
	v, frames := newView(t, 50, 5)
	v.Select("AAPL")

	hist := history(120, 1_000_000, 150)
	if !v.LoadHistory("AAPL", hist) {
		t.Fatal("LoadHistory rejected the selected symbol")
	}

	full := indicator.ComputeFull(prices(hist), 5)
	win := v.Window()
	if len(win) != 50 {
		t.Fatalf("window length = %d, want 50", len(win))
	}
	for i, p := range win {
		src := 70 + i
		if p.TS != hist[src].TS || p.Price != hist[src].Price || p.SMA != full[src] {
			t.Fatalf("point %d = %+v, want ts=%d price=%v sma=%v", i, p, hist[src].TS, hist[src].Price, full[src])
		}
	}
	if len(*frames) != 2 {
		t.Errorf("frames rendered = %d, want 2 (select + history)", len(*frames))
	}
}

func TestLoadHistory_OtherSymbolIgnored(t *testing.T) {
	v, _ := newView(t, 10, 3)
	v.Select("AAPL")
	if v.LoadHistory("MSFT", history(5, 0, 300)) {
		t.Error("history for another symbol should be ignored")
	}
	if v.Len() != 0 {
		t.Errorf("Len() = %d, want 0", v.Len())
	}
}

func TestLoadHistory_Empty(t *testing.T) {
	v, frames := newView(t, 10, 3)
	v.Select("AAPL")
	v.LoadHistory("AAPL", nil)

	if _, ok := v.Latest(); ok {
		t.Error("Latest() should be empty")
	}
	if v.Trend() != TrendUp {
		t.Errorf("Trend() on empty window = %v, want UP", v.Trend())
	}
	last := (*frames)[len(*frames)-1]
	if last.HasLatest || len(last.Price) != 0 {
		t.Errorf("frame = %+v, want empty", last)
	}
}

// ──────────────────────────────────────────────────────────────
// Ticks
// ──────────────────────────────────────────────────────────────

func TestApplyTick_AfterHistoryMatchesFullRecompute(t *testing.T) {
	const historyPoints, period = 120, 10
	v, _ := newView(t, 60, period)
	v.Select("AAPL")

	hist := history(historyPoints, 1_000_000, 150)
	v.LoadHistory("AAPL", hist)
	T := hist[len(hist)-1].TS + 1000

	changed := v.ApplyBatch([]model.Quote{
		{Symbol: "MSFT", TS: T, Price: 301},
		{Symbol: "AAPL", TS: T, Price: 151.23},
	})
	if !changed {
		t.Fatal("ApplyBatch did not apply the AAPL quote")
	}

	want := indicator.ComputeFull(append(prices(hist), 151.23), period)
	latest, _ := v.Latest()
	if latest.TS != T || latest.Price != 151.23 {
		t.Errorf("latest = %+v", latest)
	}
	if latest.SMA != want[len(want)-1] {
		t.Errorf("sma = %v, want %v", latest.SMA, want[len(want)-1])
	}
	if v.Len() != 60 {
		t.Errorf("Len() = %d, want 60", v.Len())
	}
}

func TestApplyTick_PeriodLongerThanWindow(t *testing.T) {
	const maxPoints, period = 5, 20
	v, _ := newView(t, maxPoints, period)
	v.Select("AAPL")

	hist := history(120, 1_000_000, 150)
	v.LoadHistory("AAPL", hist)

	all := prices(hist)
	ts := hist[len(hist)-1].TS
	for i, p := range []float64{151.23, 149.8, 152.02, 150.5, 148.75, 153.1, 151.0} {
		ts += 1000
		all = append(all, p)
		if !v.ApplyTick(model.Quote{Symbol: "AAPL", TS: ts, Price: p}) {
			t.Fatalf("tick %d not applied", i)
		}
		want := indicator.ComputeFull(all, period)
		latest, _ := v.Latest()
		if latest.SMA != want[len(want)-1] {
			t.Fatalf("tick %d: sma = %v, want %v", i, latest.SMA, want[len(want)-1])
		}
	}
	if v.Len() != maxPoints {
		t.Errorf("Len() = %d, want %d", v.Len(), maxPoints)
	}
}

func TestSetPeriod_UsesPricesBeyondWindow(t *testing.T) {
	v, _ := newView(t, 5, 20)
	v.Select("AAPL")
	hist := history(120, 1000, 100)
	v.LoadHistory("AAPL", hist)

	if err := v.SetPeriod(8); err != nil {
		t.Fatalf("SetPeriod(8): %v", err)
	}
	want := indicator.ComputeFull(prices(hist), 8)
	for i, p := range v.Window() {
		if p.SMA != want[115+i] {
			t.Fatalf("point %d sma = %v, want %v", i, p.SMA, want[115+i])
		}
	}
}

func TestApplyTick_IgnoresOtherSymbolAndStale(t *testing.T) {
	v, _ := newView(t, 10, 3)
	v.Select("AAPL")
	v.LoadHistory("AAPL", history(3, 1000, 100))

	if v.ApplyTick(model.Quote{Symbol: "MSFT", TS: 9000, Price: 1}) {
		t.Error("quote for another symbol applied")
	}
	if v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 3000, Price: 1}) {
		t.Error("quote already in history applied twice")
	}
	if v.Len() != 3 {
		t.Errorf("Len() = %d, want 3", v.Len())
	}
}

func TestApplyTick_NoSelection(t *testing.T) {
	v, _ := newView(t, 10, 3)
	if v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 1, Price: 1}) {
		t.Error("tick applied with no symbol selected")
	}
}

func TestApplyTick_WindowCap(t *testing.T) {
	const maxPoints = 20
	v, _ := newView(t, maxPoints, 4)
	v.Select("AAPL")

	var all []float64
	for i := 0; i < 75; i++ {
		p := 100 + float64(i%9)
		all = append(all, p)
		v.ApplyTick(model.Quote{Symbol: "AAPL", TS: int64(i+1) * 1000, Price: p})
	}

	win := v.Window()
	if len(win) != maxPoints {
		t.Fatalf("window length = %d, want %d", len(win), maxPoints)
	}
	for i, p := range win {
		wantTS := int64(75-maxPoints+i+1) * 1000
		if p.TS != wantTS {
			t.Fatalf("point %d ts = %d, want %d", i, p.TS, wantTS)
		}
	}
	want := indicator.ComputeFull(all, 4)
	if got := win[maxPoints-1].SMA; got != want[len(want)-1] {
		t.Errorf("last sma = %v, want %v", got, want[len(want)-1])
	}
}

func TestSelect_ClearsWindow(t *testing.T) {
	v, _ := newView(t, 10, 3)
	v.Select("AAPL")
	v.LoadHistory("AAPL", history(5, 1000, 100))
	v.Select("MSFT")

	if v.Len() != 0 || v.Symbol() != "MSFT" {
		t.Errorf("after Select: len=%d symbol=%q", v.Len(), v.Symbol())
	}
	if v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 99000, Price: 1}) {
		t.Error("tick for previous symbol applied")
	}
}

// ──────────────────────────────────────────────────────────────
// Trend and period
// ──────────────────────────────────────────────────────────────

func TestTrend(t *testing.T) {
	v, _ := newView(t, 10, 2)
	v.Select("AAPL")
	v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 1000, Price: 100})
	if v.Trend() != TrendUp {
		t.Errorf("single point: trend = %v, want UP", v.Trend())
	}
	v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 2000, Price: 90})
	if v.Trend() != TrendDown {
		t.Errorf("falling: trend = %v, want DOWN", v.Trend())
	}
	v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 3000, Price: 110})
	if v.Trend() != TrendUp {
		t.Errorf("rising: trend = %v, want UP", v.Trend())
	}
}

func TestSetPeriod_RecomputesRetainedWindow(t *testing.T) {
	v, _ := newView(t, 10, 3)
	v.Select("AAPL")
	hist := history(30, 1000, 100)
	v.LoadHistory("AAPL", hist)

	if err := v.SetPeriod(1); err == nil {
		t.Error("SetPeriod(1) should fail")
	}
	if err := v.SetPeriod(4); err != nil {
		t.Fatalf("SetPeriod(4): %v", err)
	}

	retained := prices(hist[20:])
	want := indicator.ComputeFull(retained, 4)
	for i, p := range v.Window() {
		if p.SMA != want[i] {
			t.Fatalf("point %d sma = %v, want %v", i, p.SMA, want[i])
		}
	}
	// the first point restarts warm-up inside the retained window
	if first := v.Window()[0]; first.SMA != first.Price {
		t.Errorf("first sma = %v, want %v", first.SMA, first.Price)
	}
}

func TestSeries_ChartPoints(t *testing.T) {
	v, _ := newView(t, 10, 2)
	v.Select("AAPL")
	v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 5000, Price: 10})
	v.ApplyTick(model.Quote{Symbol: "AAPL", TS: 6000, Price: 20})

	price, avg := v.Series()
	if len(price) != 2 || len(avg) != 2 {
		t.Fatalf("lengths = %d/%d, want 2/2", len(price), len(avg))
	}
	if price[1] != (ChartPoint{Time: 6, Value: 20}) || avg[1] != (ChartPoint{Time: 6, Value: 15}) {
		t.Errorf("series = %v / %v", price, avg)
	}
	if v.Window()[0].Label != "00:00:05" {
		t.Errorf("label = %q, want 00:00:05", v.Window()[0].Label)
	}
}
