package analytics

import (
	"strings"
	"unicode"

	"wellrag/types"
)

// MoodMapper turns a recorded mood into an ordinal score on [0,10]. The second
// return is false when the mood cannot be scored; such logs are left out of
// mood correlation instead of receiving a placeholder value.
type MoodMapper interface {
	Score(types.Mood) (float64, bool)
}

// LexiconMapper scores free-text moods by whole-word or emoji lookup.
type LexiconMapper struct {
	lexicon map[string]float64
}

// negators make a free-text mood unscored; "t" is what tokenize leaves of
// contractions such as "don't".
var negators = map[string]bool{"not": true, "no": true, "never": true, "t": true}

var defaultMoodLexicon = map[string]float64{
	"great": 9, "amazing": 9, "excellent": 9, "joyful": 9,
	"happy": 8, "energetic": 8, "energized": 8, "positive": 8,
	"good": 7, "calm": 7, "relaxed": 7, "content": 7, "hopeful": 7,
	"okay": 5, "ok": 5, "fine": 5, "neutral": 5, "meh": 5,
	"tired": 4, "low": 4, "restless": 4, "foggy": 4, "bored": 4,
	"stressed": 3, "anxious": 3, "irritable": 3, "irritated": 3, "moody": 3, "frustrated": 3, "overwhelmed": 3,
	"sad": 2, "angry": 2, "exhausted": 2, "upset": 2, "crying": 2,
	"depressed": 1, "awful": 1, "terrible": 1, "hopeless": 1,

	"😄": 9, "😁": 9, "😊": 8, "🙂": 7, "😌": 7,
	"😐": 5, "😶": 5,
	"😴": 4, "🥱": 4, "😕": 4,
	"😟": 3, "😰": 3, "😤": 3, "😣": 3,
	"😢": 2, "😠": 2, "😡": 2,
	"😭": 1, "😞": 1,
}

func NewLexiconMapper(extra map[string]float64) *LexiconMapper {
	lexicon := make(map[string]float64, len(defaultMoodLexicon)+len(extra))
	for k, v := range defaultMoodLexicon {
		lexicon[k] = v
	}
	for k, v := range extra {
		lexicon[strings.ToLower(k)] = clamp(v, 0, 10)
	}
	return &LexiconMapper{lexicon: lexicon}
}

func (m *LexiconMapper) Score(mood types.Mood) (float64, bool) {
	switch mood.Kind {
	case types.MoodScored:
		return clamp(mood.Score, 0, 10), true
	case types.MoodFreeText:
		return m.scoreText(mood.Text)
	default:
		return 0, false
	}
}

// scoreText averages every lexicon hit in the text. Negated text is left
// unscored since a bag of words cannot tell "not happy" from "happy".
func (m *LexiconMapper) scoreText(text string) (float64, bool) {
	var sum float64
	var hits int
	for _, token := range tokenize(text) {
		if negators[token] {
			return 0, false
		}
		if v, ok := m.lexicon[token]; ok {
			sum += v
			hits++
		}
	}
	if hits == 0 {
		return 0, false
	}
	return sum / float64(hits), true
}

// tokenize splits on anything that is neither a letter nor a symbol, so emoji
// survive as their own tokens.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r):
			word.WriteRune(r)
		case unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
