package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellrag/types"
)

func logsWithSeverities(severities ...int) []types.SymptomLog {
	start := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	logs := make([]types.SymptomLog, len(severities))
	for i, s := range severities {
		logs[i] = types.SymptomLog{
			UserID:      "u1",
			SymptomType: "hot flash",
			Severity:    s,
			CreatedAt:   start.AddDate(0, 0, i),
		}
	}
	return logs
}

func intPtr(v int) *int { return &v }

func TestAnalyzeEmpty(t *testing.T) {
	got := NewEngine().Analyze(nil)

	assert.Equal(t, 0.0, got.RiskScore)
	assert.Equal(t, types.RiskLow, got.RiskLevel)
	assert.Equal(t, types.TrendStable, got.Trend)
	assert.Equal(t, 0.0, got.Volatility)
	assert.Equal(t, types.Correlations{}, got.Correlations)
	assert.NotNil(t, got.Forecast)
	assert.Empty(t, got.Forecast)
}

func TestAnalyzeWorseningScenario(t *testing.T) {
	got := NewEngine().Analyze(logsWithSeverities(3, 5, 8))

	assert.InDelta(t, 53.333, got.RiskScore, 0.01)
	assert.Equal(t, types.RiskModerate, got.RiskLevel)
	assert.Equal(t, types.TrendWorsening, got.Trend)
	assert.InDelta(t, 2.0548, got.Volatility, 0.001)

	require.Len(t, got.Forecast, DefaultHorizon)
	for i, p := range got.Forecast {
		assert.Equal(t, i+1, p.DayOffset)
		assert.Equal(t, 10.0, p.PredictedSeverity, "steep upward line is clamped at 10")
	}
}

func TestAnalyzeImprovingAndStable(t *testing.T) {
	engine := NewEngine()

	assert.Equal(t, types.TrendImproving, engine.Analyze(logsWithSeverities(9, 7, 4, 2)).Trend)
	assert.Equal(t, types.TrendStable, engine.Analyze(logsWithSeverities(5, 5, 5, 5)).Trend)
	assert.Equal(t, types.TrendStable, engine.Analyze(logsWithSeverities(5)).Trend)
}

func TestRiskLevels(t *testing.T) {
	engine := NewEngine()

	assert.Equal(t, types.RiskHigh, engine.Analyze(logsWithSeverities(7, 7)).RiskLevel)
	assert.Equal(t, types.RiskModerate, engine.Analyze(logsWithSeverities(4, 4)).RiskLevel)
	assert.Equal(t, types.RiskLow, engine.Analyze(logsWithSeverities(3, 4)).RiskLevel)
}

func TestRiskScoreIsCappedAndMonotonic(t *testing.T) {
	prev := -1.0
	for m := 0; m <= 12; m++ {
		score := RiskScore([]float64{float64(m), float64(m)})
		assert.Equal(t, math.Min(100, float64(m)*10), score)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestOutOfRangeSeverityIsClamped(t *testing.T) {
	got := NewEngine().Analyze(logsWithSeverities(14, -3))

	assert.Equal(t, 50.0, got.RiskScore)
	assert.Equal(t, 5.0, got.Volatility)
}

func TestStrictlyIncreasingSeriesHasPositiveSlope(t *testing.T) {
	for n := 3; n <= 10; n++ {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i) * 0.5
		}
		assert.Greater(t, Slope(values), 0.0, "n=%d", n)
	}
}

func TestForecastHorizonAndBounds(t *testing.T) {
	engine := NewEngine(WithHorizon(14))

	got := engine.Analyze(logsWithSeverities(2, 3, 2, 4, 3))
	require.Len(t, got.Forecast, 14)
	for _, p := range got.Forecast {
		assert.GreaterOrEqual(t, p.PredictedSeverity, 0.0)
		assert.LessOrEqual(t, p.PredictedSeverity, 10.0)
	}

	falling := engine.Analyze(logsWithSeverities(9, 5, 1))
	assert.Equal(t, 0.0, falling.Forecast[len(falling.Forecast)-1].PredictedSeverity)
}

func TestForecastNeedsThreeLogs(t *testing.T) {
	got := NewEngine().Analyze(logsWithSeverities(4, 6))
	assert.Empty(t, got.Forecast)
}

func TestForecastExtendsFittedLine(t *testing.T) {
	got := NewEngine(WithHorizon(2)).Analyze(logsWithSeverities(1, 2, 3))

	require.Len(t, got.Forecast, 2)
	assert.InDelta(t, 4.0, got.Forecast[0].PredictedSeverity, 1e-9)
	assert.InDelta(t, 5.0, got.Forecast[1].PredictedSeverity, 1e-9)
}

func TestSleepCorrelation(t *testing.T) {
	logs := logsWithSeverities(2, 5, 8)
	logs[0].Sleep = intPtr(8)
	logs[1].Sleep = intPtr(6)
	logs[2].Sleep = intPtr(4)

	got := NewEngine().Analyze(logs)
	assert.InDelta(t, -1.0, got.Correlations.SleepVsSeverity, 1e-9)
}

func TestSleepCorrelationSkipsMissingSleep(t *testing.T) {
	logs := logsWithSeverities(2, 5, 8, 9)
	logs[0].Sleep = intPtr(8)
	logs[2].Sleep = intPtr(4)

	got := NewEngine().Analyze(logs)
	assert.Equal(t, 0.0, got.Correlations.SleepVsSeverity, "two pairs are not enough")
}

func TestZeroVarianceCorrelationIsZero(t *testing.T) {
	logs := logsWithSeverities(5, 5, 5, 5)
	for i := range logs {
		logs[i].Sleep = intPtr(i + 3)
		logs[i].Mood = types.ScoredMood(float64(i))
	}

	got := NewEngine().Analyze(logs)
	assert.False(t, math.IsNaN(got.Correlations.SleepVsSeverity))
	assert.Equal(t, 0.0, got.Correlations.SleepVsSeverity)
	assert.Equal(t, 0.0, got.Correlations.MoodVsSeverity)
}

func TestMoodCorrelationUsesMappedScores(t *testing.T) {
	logs := logsWithSeverities(2, 6, 8, 5)
	logs[0].Mood = types.FreeTextMood("Happy!")
	logs[1].Mood = types.FreeTextMood("tired")
	logs[2].Mood = types.FreeTextMood("sad")
	logs[3].Mood = types.FreeTextMood("🤷 whatever")

	got := NewEngine().Analyze(logs)
	assert.InDelta(t, -1.0, got.Correlations.MoodVsSeverity, 1e-9)
}

func TestMoodCorrelationExcludesUnscoredMoods(t *testing.T) {
	logs := logsWithSeverities(2, 6, 8)
	logs[0].Mood = types.FreeTextMood("happy")
	logs[1].Mood = types.FreeTextMood("purple")
	logs[2].Mood = types.ScoredMood(3)

	got := NewEngine().Analyze(logs)
	assert.Equal(t, 0.0, got.Correlations.MoodVsSeverity)
}

type fixedMapper float64

func (f fixedMapper) Score(types.Mood) (float64, bool) { return float64(f), true }

func TestWithMoodMapper(t *testing.T) {
	logs := logsWithSeverities(1, 4, 9)

	got := NewEngine(WithMoodMapper(fixedMapper(6))).Analyze(logs)
	assert.Equal(t, 0.0, got.Correlations.MoodVsSeverity, "a constant mood has no variance")
}
