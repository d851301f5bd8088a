// Package guard decides whether a message belongs to the assistant's domain
// before any retrieval or analytics work is started.
package guard

import "strings"

// Classifier is the gate consulted first for every incoming message.
type Classifier interface {
	IsInDomain(text string) bool
}

// RefusalMessage is returned verbatim when a message is rejected.
const RefusalMessage = "I specialize only in menopause-related health concerns. Please ask me about menopause symptoms, sleep, mood, hormones, or related wellness topics."

var domainTerms = []string{
	// menopause stages
	"menopause", "perimenopause", "postmenopause", "premenopause",
	"menopausal", "climacteric",

	// hormonal
	"hormone", "hormonal", "estrogen", "oestrogen", "progesterone", "testosterone",
	"hrt", "hormone therapy", "hormone replacement", "endocrine",

	// vasomotor
	"hot flash", "hot flush", "night sweat", "vasomotor",
	"body temperature", "chills", "sweating",

	// sleep and energy
	"sleep", "insomnia", "fatigue", "tired", "exhaustion",
	"restless", "waking up",

	// mood and cognition
	"mood", "anxiety", "anxious", "depression",
	"irritability", "brain fog", "memory", "concentration",
	"emotional", "stress", "overwhelm", "crying",

	// physical
	"bone", "osteoporosis", "joint pain", "muscle ache",
	"headache", "migraine", "weight gain", "bloating",
	"dry skin", "hair loss", "hair thinning",
	"palpitation", "dizziness",

	// reproductive and urinary
	"irregular period", "missed period", "vaginal dryness",
	"libido", "urinary", "bladder", "incontinence",
	"breast tenderness", "period", "menstrual", "cycle",

	// general discomfort
	"nausea", "cramp", "ache", "pain", "stiffness",
	"inflammation", "swelling", "tingling",

	// wellness and remedies
	"supplement", "vitamin", "calcium", "magnesium", "omega",
	"herbal", "natural remedy", "yoga", "meditation",
	"exercise", "diet", "nutrition", "phytoestrogen",
	"black cohosh", "evening primrose", "flaxseed",
	"acupuncture", "wellness", "self-care",

	// general health
	"symptom", "severity", "health", "well-being",
	"doctor", "gynecologist", "treatment", "relief",
	"aging", "midlife",
}

// KeywordGuard is a case-insensitive substring matcher. It accepts on the
// first vocabulary hit, so it errs towards letting borderline questions in.
type KeywordGuard struct {
	terms []string
}

func NewKeywordGuard(extra ...string) *KeywordGuard {
	terms := make([]string, 0, len(domainTerms)+len(extra))
	terms = append(terms, domainTerms...)
	for _, t := range extra {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &KeywordGuard{terms: terms}
}

func (g *KeywordGuard) IsInDomain(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range g.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
