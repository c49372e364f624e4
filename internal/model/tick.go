package model

// Sample is one point of a symbol's price series.
// TS is a Unix timestamp in milliseconds.
type Sample struct {
	TS    int64   `json:"t"`
	Price float64 `json:"price"`
}

// Quote is the latest price of one symbol inside a tick batch.
type Quote struct {
	Symbol string  `json:"symbol"`
	TS     int64   `json:"t"`
	Price  float64 `json:"price"`
}

// Sample drops the symbol from the quote.
func (q Quote) Sample() Sample {
	return Sample{TS: q.TS, Price: q.Price}
}

// TickBatch is everything one generator tick produced: one quote per symbol,
// all sharing the same timestamp. Consumers must treat it as read-only.
type TickBatch struct {
	TS     int64
	Quotes []Quote
}
