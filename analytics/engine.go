// Package analytics derives health signals from a user's symptom logs.
package analytics

import (
	"math"

	"wellrag/types"
)

const (
	DefaultHorizon = 7

	minPairs = 3

	trendThreshold    = 0.1
	highRiskScore     = 70
	moderateRiskScore = 40
)

// Engine is stateless apart from its settings and safe for concurrent use.
type Engine struct {
	horizon int
	mapper  MoodMapper
}

type Option func(*Engine)

func WithHorizon(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.horizon = days
		}
	}
}

func WithMoodMapper(m MoodMapper) Option {
	return func(e *Engine) {
		if m != nil {
			e.mapper = m
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		horizon: DefaultHorizon,
		mapper:  NewLexiconMapper(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze expects logs for a single user in ascending time order.
func (e *Engine) Analyze(logs []types.SymptomLog) types.AnalyticsResult {
	if len(logs) == 0 {
		return types.AnalyticsResult{
			RiskLevel: types.RiskLow,
			Trend:     types.TrendStable,
			Forecast:  []types.ForecastPoint{},
		}
	}

	severities := make([]float64, len(logs))
	for i, l := range logs {
		severities[i] = clamp(float64(l.Severity), 0, 10)
	}

	score := RiskScore(severities)
	fit := fitLine(severities)

	return types.AnalyticsResult{
		RiskScore:    score,
		RiskLevel:    riskLevel(score),
		Trend:        trend(fit.slope),
		Volatility:   populationStdDev(severities),
		Correlations: e.correlations(logs, severities),
		Forecast:     forecast(fit, len(severities), e.horizon),
	}
}

// RiskScore is min(100, mean severity * 10).
func RiskScore(severities []float64) float64 {
	if len(severities) == 0 {
		return 0
	}
	return math.Min(100, mean(severities)*10)
}

// Slope is the least-squares slope of severity against sequence index.
func Slope(severities []float64) float64 {
	return fitLine(severities).slope
}

func riskLevel(score float64) types.RiskLevel {
	switch {
	case score >= highRiskScore:
		return types.RiskHigh
	case score >= moderateRiskScore:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

func trend(slope float64) types.Trend {
	switch {
	case slope > trendThreshold:
		return types.TrendWorsening
	case slope < -trendThreshold:
		return types.TrendImproving
	default:
		return types.TrendStable
	}
}

func (e *Engine) correlations(logs []types.SymptomLog, severities []float64) types.Correlations {
	var sleepX, sleepY, moodX, moodY []float64
	for i, l := range logs {
		if l.Sleep != nil {
			sleepX = append(sleepX, clamp(float64(*l.Sleep), 0, 10))
			sleepY = append(sleepY, severities[i])
		}
		if score, ok := e.mapper.Score(l.Mood); ok {
			moodX = append(moodX, score)
			moodY = append(moodY, severities[i])
		}
	}
	return types.Correlations{
		SleepVsSeverity: pearson(sleepX, sleepY),
		MoodVsSeverity:  pearson(moodX, moodY),
	}
}

// forecast extends the fitted line past the last observed index n-1.
func forecast(fit line, n, horizon int) []types.ForecastPoint {
	if n < minPairs || horizon <= 0 {
		return []types.ForecastPoint{}
	}
	points := make([]types.ForecastPoint, horizon)
	for d := 1; d <= horizon; d++ {
		points[d-1] = types.ForecastPoint{
			DayOffset:         d,
			PredictedSeverity: clamp(fit.at(float64(n-1+d)), 0, 10),
		}
	}
	return points
}
