package agent

import (
	"fmt"
	"math"
	"strings"

	"wellrag/types"
)

const (
	maxHistoryEntries = 10
	maxInsightEntries = 15
	maxDocRunes       = 400
	significantR      = 0.4
)

// Persona is the system voice of the assistant. It opens every prompt.
const Persona = `You are a menopause wellness companion: a warm, knowledgeable friend who supports women through perimenopause and menopause.

How you answer:
- Acknowledge how the person feels before anything else.
- Keep it short, two to four conversational paragraphs.
- Offer lifestyle and natural approaches first (sleep hygiene, breathing, diet, movement) and mention medical options after.
- Bring in evidence conversationally ("studies have found...", "many women find...") instead of listing citations.
- No tables, headers or long lists. At most three bullet points.
- Close with encouragement or a caring question, not a disclaimer.

You never diagnose, never prescribe medication, never call yourself an AI and never answer topics unrelated to menopause and women's health.`

const closing = `Answer as the companion described above: warm, brief, evidence-informed and natural-remedy-first.`

// NoLogsInsight is returned instead of an insight prompt when the user has
// not logged anything yet.
const NoLogsInsight = "No symptoms logged yet. Begin tracking how you feel each day, and personalized insights will follow from your patterns."

// ComposePrompt renders the generator prompt. Sections without data are left
// out entirely.
func ComposePrompt(message string, pc types.PromptContext) string {
	var b strings.Builder
	b.WriteString(Persona)

	if strings.TrimSpace(pc.Memory) != "" {
		b.WriteString("\n\nRecent conversation with this user (refer to it naturally when relevant):\n")
		b.WriteString(pc.Memory)
	}

	if strings.TrimSpace(pc.SymptomHistorySummary) != "" {
		b.WriteString("\n\nThe user's recent symptom log entries, newest first:\n")
		b.WriteString(pc.SymptomHistorySummary)
		b.WriteString("\nMention their specific symptoms, moods and sleep when it helps.")
	}

	if pc.Analytics != nil {
		b.WriteString("\n\nHealth data derived from their logs (weave in what is relevant, do not list numbers):\n")
		b.WriteString(formatAnalytics(*pc.Analytics))
	}

	if len(pc.RetrievedDocs) > 0 {
		b.WriteString("\n\nRelevant research you can draw from (cite naturally, do not list):\n")
		for i, d := range pc.RetrievedDocs {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s]: %s", d.Source, truncateRunes(d.Text, maxDocRunes))
		}
	}

	fmt.Fprintf(&b, "\n\nThe user says: \"%s\"\n\n%s", message, closing)
	return b.String()
}

func formatAnalytics(r types.AnalyticsResult) string {
	sleep := r.Correlations.SleepVsSeverity
	sleepNote := "mild"
	if math.Abs(sleep) > significantR {
		sleepNote = "significant, mention this"
	}

	lines := []string{
		fmt.Sprintf("- Symptom risk score: %.1f%% (%s)", r.RiskScore, r.RiskLevel),
		fmt.Sprintf("- Symptom trend: %s", r.Trend),
		fmt.Sprintf("- Sleep-severity correlation: %.2f (%s)", sleep, sleepNote),
		fmt.Sprintf("- Mood-severity correlation: %.2f", r.Correlations.MoodVsSeverity),
	}
	if f := forecastDirection(r.Forecast); f != "" {
		lines = append(lines, "- Forecast: "+f)
	}
	return strings.Join(lines, "\n")
}

func forecastDirection(points []types.ForecastPoint) string {
	if len(points) == 0 {
		return ""
	}
	first := points[0].PredictedSeverity
	last := points[len(points)-1]
	days := last.DayOffset

	switch delta := last.PredictedSeverity - first; {
	case delta > 0.05:
		return fmt.Sprintf("severity likely to rise toward %.1f/10 over the next %d days", last.PredictedSeverity, days)
	case delta < -0.05:
		return fmt.Sprintf("severity likely to ease toward %.1f/10 over the next %d days", last.PredictedSeverity, days)
	default:
		return fmt.Sprintf("severity likely to stay around %.1f/10 over the next %d days", last.PredictedSeverity, days)
	}
}

// SummarizeLogs formats up to limit of the most recent logs, newest first.
// logs are expected in ascending time order.
func SummarizeLogs(logs []types.SymptomLog, limit int) string {
	lines := make([]string, 0, min(limit, len(logs)))
	for i := len(logs) - 1; i >= 0 && len(lines) < limit; i-- {
		lines = append(lines, formatLog(logs[i]))
	}
	return strings.Join(lines, "\n")
}

func formatLog(l types.SymptomLog) string {
	mood := l.Mood.String()
	if mood == "" {
		mood = "N/A"
	}
	sleep := "N/A"
	if l.Sleep != nil {
		sleep = fmt.Sprintf("%d/10", *l.Sleep)
	}

	line := fmt.Sprintf("%s: %s (severity %d/10), mood: %s, sleep: %s",
		l.CreatedAt.Format("Jan 2"), l.SymptomType, l.Severity, mood, sleep)
	if l.Notes != "" {
		line += ", notes: " + l.Notes
	}
	return line
}

// FormatMemory renders conversation turns as "role: content" lines.
func FormatMemory(turns []types.ConversationTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

// ComposeInsightPrompt asks for a short personal summary of the user's
// logs, which are expected in ascending time order.
func ComposeInsightPrompt(logs []types.SymptomLog) string {
	if len(logs) == 0 {
		return NoLogsInsight
	}

	var total float64
	for _, l := range logs {
		total += float64(min(max(l.Severity, 0), 10))
	}
	avg := total / float64(len(logs))

	symptoms := distinctRecent(logs, 6, func(l types.SymptomLog) string { return l.SymptomType })
	moods := distinctRecent(logs, 5, func(l types.SymptomLog) string { return l.Mood.String() })

	var b strings.Builder
	b.WriteString("You write short, empathetic health summaries for a woman tracking her menopause symptoms.\n\n")
	fmt.Fprintf(&b, "Her recent data:\n- %d symptom entries logged\n- Average severity: %.1f/10\n", len(logs), avg)
	if len(symptoms) > 0 {
		fmt.Fprintf(&b, "- Common symptoms: %s\n", strings.Join(symptoms, ", "))
	}
	if len(moods) > 0 {
		fmt.Fprintf(&b, "- Recent moods: %s\n", strings.Join(moods, ", "))
	}
	b.WriteString("\nRecent log details:\n")
	b.WriteString(SummarizeLogs(logs, maxInsightEntries))
	b.WriteString(`

Write a warm 2-3 sentence summary that names her actual symptoms, offers one gentle actionable observation and reads like a caring friend rather than a clinical report.
Plain prose only, no markdown or bullet points, under 60 words.`)
	return b.String()
}

// distinctRecent collects up to limit distinct non-empty values, newest first.
func distinctRecent(logs []types.SymptomLog, limit int, value func(types.SymptomLog) string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		v := value(logs[i])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
