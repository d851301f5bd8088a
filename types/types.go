package types

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// documentNamespace scopes the deterministic document and chunk ids.
var documentNamespace = uuid.MustParse("6f1c2a8e-3b7d-4c59-9a0e-5d2f8b41c7e3")

type MoodKind int

const (
	MoodMissing MoodKind = iota
	MoodScored
	MoodFreeText
)

// Mood is what the user recorded about how they feel. A free-text mood has no
// score until it goes through a mapping stage.
type Mood struct {
	Kind  MoodKind
	Score float64
	Text  string
}

func ScoredMood(score float64) Mood {
	return Mood{Kind: MoodScored, Score: score}
}

func FreeTextMood(text string) Mood {
	if text == "" {
		return Mood{Kind: MoodMissing}
	}
	return Mood{Kind: MoodFreeText, Text: text}
}

// String renders the mood the way it was recorded.
func (m Mood) String() string {
	switch m.Kind {
	case MoodScored:
		return strconv.FormatFloat(m.Score, 'f', -1, 64) + "/10"
	case MoodFreeText:
		return m.Text
	default:
		return ""
	}
}

type SymptomLog struct {
	UserID      string    `json:"user_id"`
	SymptomType string    `json:"symptom_type"`
	Severity    int       `json:"severity"`
	Mood        Mood      `json:"-"`
	Sleep       *int      `json:"sleep,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Document struct {
	ID      uuid.UUID
	Name    string // file name or caller supplied key, stable across re-ingestion
	Title   string
	Source  string
	RawText string
}

// NewDocument derives the document id from its name so that ingesting the
// same document twice addresses the same rows.
func NewDocument(name, title, source, rawText string) Document {
	return Document{
		ID:      DocumentID(name),
		Name:    name,
		Title:   title,
		Source:  source,
		RawText: rawText,
	}
}

func DocumentID(name string) uuid.UUID {
	return uuid.NewSHA1(documentNamespace, []byte(name))
}

func ChunkID(docID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(strconv.Itoa(index)))
}

type DocumentChunk struct {
	SourceDocumentID uuid.UUID `json:"source_document_id"`
	DocumentName     string    `json:"document_name"`
	Title            string    `json:"title"`
	Source           string    `json:"source"`
	ChunkIndex       int       `json:"chunk_index"`
	Text             string    `json:"content"`
	Embedding        []float32 `json:"-"`
	Similarity       float64   `json:"similarity"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendStable    Trend = "Stable"
	TrendWorsening Trend = "Worsening"
)

type Correlations struct {
	SleepVsSeverity float64 `json:"sleep_vs_severity"`
	MoodVsSeverity  float64 `json:"mood_vs_severity"`
}

type ForecastPoint struct {
	DayOffset         int     `json:"day_offset"`
	PredictedSeverity float64 `json:"predicted_severity"`
}

type AnalyticsResult struct {
	RiskScore    float64         `json:"risk_score"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	Trend        Trend           `json:"trend"`
	Volatility   float64         `json:"volatility"`
	Correlations Correlations    `json:"correlations"`
	Forecast     []ForecastPoint `json:"forecast"`
}

// Source names one of the independent fetches behind a prompt context.
type Source string

const (
	SourceSymptomLogs Source = "symptom_logs"
	SourceDocuments   Source = "documents"
	SourceMemory      Source = "memory"
)

// ContextState is the terminal state reached while assembling a prompt context.
type ContextState string

const (
	StateDomainRejected  ContextState = "domain_rejected"
	StateFullContext     ContextState = "full_context"
	StatePartialContext  ContextState = "partial_context"
	StateFallbackPersona ContextState = "fallback_persona"
)

type PromptContext struct {
	DomainAccepted        bool
	State                 ContextState
	Missing               []Source
	Analytics             *AnalyticsResult
	RetrievedDocs         []DocumentChunk
	Memory                string
	SymptomHistorySummary string
}

// Config drives the document loader.
type Config struct {
	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	ChunkSize      int
	ChunkOverlap   int
	CropTop        float64 // points trimmed from the top of each PDF page
	CropBottom     float64
}

type DoclingResponse struct {
	Document struct {
		MdContent   string `json:"md_content"`
		TextContent string `json:"text_content"`
	} `json:"document"`
}

// IngestReport summarises one ingestion run of a document.
type IngestReport struct {
	DocumentID         uuid.UUID `json:"document_id"`
	DocumentName       string    `json:"document_name"`
	Chunks             int       `json:"chunks"`
	Stored             int       `json:"stored"`
	EmbeddingFallbacks int       `json:"embedding_fallbacks"`
	WriteFailures      int       `json:"write_failures"`
	StaleDeleted       int64     `json:"stale_deleted"`
}
