package models

import (
	"fmt"
	"time"
)

// Bar is one daily OHLCV observation.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered daily series for one instrument. Components never mutate it.
type PriceSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// NewPriceSeries validates ordering and returns the series.
func NewPriceSeries(ticker string, bars []Bar) (PriceSeries, error) {
	s := PriceSeries{Ticker: ticker, Bars: bars}
	if err := s.Validate(); err != nil {
		return PriceSeries{}, err
	}
	return s, nil
}

// Validate checks that dates are strictly increasing and the series is not empty.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return &InsufficientDataError{Ticker: s.Ticker, Operation: "price series", Required: 1, Got: 0}
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("price series %s: dates not strictly increasing at %s", s.Ticker, s.Bars[i].Date.Format(time.DateOnly))
		}
	}
	return nil
}

func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes returns a fresh slice of closing prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns a fresh slice of bar dates.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Last returns the most recent bar. The series must not be empty.
func (s PriceSeries) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Tail returns the most recent n bars as a new series sharing the backing array.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n >= len(s.Bars) {
		return s
	}
	return PriceSeries{Ticker: s.Ticker, Bars: s.Bars[len(s.Bars)-n:]}
}

// ReturnKind selects simple or log returns.
type ReturnKind string

const (
	SimpleReturns ReturnKind = "simple"
	LogReturns    ReturnKind = "log"
)

// ReturnSeries holds returns dated by the later bar of each pair.
type ReturnSeries struct {
	Ticker string      `json:"ticker"`
	Kind   ReturnKind  `json:"kind"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

func (r ReturnSeries) Len() int { return len(r.Values) }
