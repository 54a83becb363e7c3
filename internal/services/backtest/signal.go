package backtest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/services/indicators"
)

// Named signals.
const (
	NameRSIBelow30          = "rsi_below_30"
	NameRSIAbove70          = "rsi_above_70"
	NameMACDCrossover       = "macd_crossover"
	NameGoldenCross         = "golden_cross"
	NameDeathCross          = "death_cross"
	NameBollingerLowerTouch = "bollinger_lower_touch"
	NameVolumeSpike         = "volume_spike"
)

// SupportedSignals lists the named signals accepted by ParseSignal.
var SupportedSignals = []string{
	NameRSIBelow30,
	NameRSIAbove70,
	NameMACDCrossover,
	NameGoldenCross,
	NameDeathCross,
	NameBollingerLowerTouch,
	NameVolumeSpike,
}

// Signal is a boolean predicate over the bars up to and including the evaluation bar.
// The set of variants is closed; ParseSignal is the only constructor from names.
type Signal interface {
	Name() string
	Fires(v View) bool
	sealed()
}

// View exposes indicator values of a series prefix. Reading a bar after the
// evaluation bar panics with *models.LookAheadViolation.
type View struct {
	set    *indicators.Set
	limit  int
	signal string
}

// Index returns the evaluation bar.
func (v View) Index() int { return v.limit }

// At returns indicator name at bar i, NaN when undefined.
func (v View) At(name string, i int) float64 {
	if i > v.limit {
		panic(&models.LookAheadViolation{Signal: v.signal, Index: i, Limit: v.limit})
	}
	if i < 0 {
		return math.NaN()
	}
	col, ok := v.set.Get(name)
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Now returns indicator name at the evaluation bar.
func (v View) Now(name string) float64 { return v.At(name, v.limit) }

// Prev returns indicator name one bar before the evaluation bar.
func (v View) Prev(name string) float64 { return v.At(name, v.limit-1) }

// Evaluate runs sig at bar i and converts a look-ahead panic into an error.
func Evaluate(sig Signal, set *indicators.Set, i int) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			lav, ok := r.(*models.LookAheadViolation)
			if !ok {
				panic(r)
			}
			err = lav
		}
	}()
	return sig.Fires(View{set: set, limit: i, signal: sig.Name()}), nil
}

// RSIBelow fires while RSI(14) is under Level.
type RSIBelow struct{ Level float64 }

func (s RSIBelow) Name() string      { return fmt.Sprintf("rsi_below_%g", s.Level) }
func (s RSIBelow) Fires(v View) bool { return v.Now(indicators.RSI14) < s.Level }
func (RSIBelow) sealed()             {}

// RSIAbove fires while RSI(14) is over Level.
type RSIAbove struct{ Level float64 }

func (s RSIAbove) Name() string      { return fmt.Sprintf("rsi_above_%g", s.Level) }
func (s RSIAbove) Fires(v View) bool { return v.Now(indicators.RSI14) > s.Level }
func (RSIAbove) sealed()             {}

// MACDCrossover fires when the MACD histogram turns positive.
type MACDCrossover struct{}

func (MACDCrossover) Name() string { return NameMACDCrossover }
func (MACDCrossover) Fires(v View) bool {
	return crossedAbove(v.Prev(indicators.MACDHist), 0, v.Now(indicators.MACDHist), 0)
}
func (MACDCrossover) sealed() {}

// GoldenCross fires when SMA50 crosses above SMA200.
type GoldenCross struct{}

func (GoldenCross) Name() string { return NameGoldenCross }
func (GoldenCross) Fires(v View) bool {
	return crossedAbove(v.Prev(indicators.SMA50), v.Prev(indicators.SMA200), v.Now(indicators.SMA50), v.Now(indicators.SMA200))
}
func (GoldenCross) sealed() {}

// DeathCross fires when SMA50 crosses below SMA200.
type DeathCross struct{}

func (DeathCross) Name() string { return NameDeathCross }
func (DeathCross) Fires(v View) bool {
	return crossedAbove(v.Prev(indicators.SMA200), v.Prev(indicators.SMA50), v.Now(indicators.SMA200), v.Now(indicators.SMA50))
}
func (DeathCross) sealed() {}

// BollingerLowerTouch fires when the low reaches the lower 20/2 band.
type BollingerLowerTouch struct{}

func (BollingerLowerTouch) Name() string { return NameBollingerLowerTouch }
func (BollingerLowerTouch) Fires(v View) bool {
	lower := v.Now(indicators.BBLower)
	return !math.IsNaN(lower) && v.Now(indicators.Low) <= lower
}
func (BollingerLowerTouch) sealed() {}

// VolumeSpike fires when volume exceeds Multiple times the trailing 20-day average.
type VolumeSpike struct{ Multiple float64 }

func (VolumeSpike) Name() string        { return NameVolumeSpike }
func (s VolumeSpike) Fires(v View) bool { return v.Now(indicators.VolRatio) > s.Multiple }
func (VolumeSpike) sealed()             {}

// Threshold compares an indicator against a constant or another indicator,
// e.g. "rsi<25" or "close>sma200".
type Threshold struct {
	Indicator string
	Op        string
	Value     float64
	Ref       string
}

func (s Threshold) Name() string {
	if s.Ref != "" {
		return s.Indicator + s.Op + s.Ref
	}
	return s.Indicator + s.Op + strconv.FormatFloat(s.Value, 'g', -1, 64)
}

func (s Threshold) Fires(v View) bool {
	left := v.Now(s.Indicator)
	right := s.Value
	if s.Ref != "" {
		right = v.Now(s.Ref)
	}
	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}
	switch s.Op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	default:
		return false
	}
}

func (Threshold) sealed() {}

var thresholdRe = regexp.MustCompile(`^([a-z][a-z0-9_]*)\s*(<=|>=|<|>)\s*([a-z0-9_.+-]+)$`)

// ParseSignal resolves a signal name into its variant.
func ParseSignal(name string) (Signal, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case NameRSIBelow30:
		return RSIBelow{Level: 30}, nil
	case NameRSIAbove70:
		return RSIAbove{Level: 70}, nil
	case NameMACDCrossover:
		return MACDCrossover{}, nil
	case NameGoldenCross:
		return GoldenCross{}, nil
	case NameDeathCross:
		return DeathCross{}, nil
	case NameBollingerLowerTouch:
		return BollingerLowerTouch{}, nil
	case NameVolumeSpike:
		return VolumeSpike{Multiple: 2}, nil
	}
	m := thresholdRe.FindStringSubmatch(n)
	if m == nil || !knownIndicator(m[1]) {
		return nil, &models.UnknownSignalError{Name: name, Known: SupportedSignals}
	}
	t := Threshold{Indicator: m[1], Op: m[2]}
	if v, err := strconv.ParseFloat(m[3], 64); err == nil {
		t.Value = v
		return t, nil
	}
	if !knownIndicator(m[3]) {
		return nil, &models.UnknownSignalError{Name: name, Known: SupportedSignals}
	}
	t.Ref = m[3]
	return t, nil
}

func knownIndicator(name string) bool {
	for _, n := range indicators.Names {
		if n == name {
			return true
		}
	}
	return false
}

// crossedAbove reports a moving from at-or-below b to strictly above it.
func crossedAbove(aPrev, bPrev, aNow, bNow float64) bool {
	for _, x := range []float64{aPrev, bPrev, aNow, bNow} {
		if math.IsNaN(x) {
			return false
		}
	}
	return aPrev <= bPrev && aNow > bNow
}
