package humanoid

import (
	"math/rand"
	"strings"
	"time"
	"unicode"
)

// keyboardNeighbors maps characters to their adjacent keys on a QWERTY
// layout, used to pick plausible wrong keys for typos.
var keyboardNeighbors = map[rune]string{
	'1': "2q`", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9-op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol;0-",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiol,m", 'l': "kop;.",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk,",
}

// commonDigraphs are two-character sequences typed from muscle memory,
// noticeably faster than the persona's base cadence.
var commonDigraphs = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true, "en": true, "ed": true,
	"nd": true, "to": true, "it": true, "ou": true, "ea": true, "hi": true,
	"is": true, "or": true, "ti": true, "as": true, "te": true, "et": true,
	"ng": true, "of": true, "al": true, "de": true, "se": true, "le": true,
	"sa": true, "si": true, "ar": true, "ve": true, "ra": true, "ld": true,
	"ur": true, "ha": true, "ne": true, "me": true,
}

// shiftSymbols are the non-letter characters that require Shift on a US
// layout. Uppercase letters are detected separately.
var shiftSymbols = map[rune]bool{
	'~': true, '!': true, '@': true, '#': true, '$': true, '%': true,
	'^': true, '&': true, '*': true, '(': true, ')': true, '_': true,
	'+': true, '{': true, '}': true, '|': true, ':': true, '"': true,
	'<': true, '>': true, '?': true,
}

// StatisticalKeystrokes is the production KeystrokeProvider. Each Generate
// call samples one typing speed and one typo rate, so a whole invocation
// shares a consistent "personality".
type StatisticalKeystrokes struct {
	rng *rand.Rand
}

// NewStatisticalKeystrokes creates a provider. A nil rng gets a time-based
// seed.
func NewStatisticalKeystrokes(rng *rand.Rand) *StatisticalKeystrokes {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StatisticalKeystrokes{rng: rng}
}

// Generate produces the keystroke plan for text. Empty input yields an empty
// sequence; otherwise the plan holds at least one event per character, the
// first with a strictly positive pre-delay.
func (g *StatisticalKeystrokes) Generate(text string) []KeystrokeEvent {
	if text == "" {
		return nil
	}
	runes := []rune(text)

	wpm := 45 + g.rng.Float64()*30
	baseMs := 60000.0 / (wpm * 5) // 5 chars per word convention
	typoRate := 0.02 + g.rng.Float64()*0.02

	events := make([]KeystrokeEvent, 0, len(runes)+4)
	var prev rune
	for i, r := range runes {
		flight := g.flightMs(baseMs, prev, r, i == 0)

		// The first character and spaces never host a typo.
		if i > 0 && r != ' ' && g.rng.Float64() < typoRate {
			if wrong, ok := g.neighborOf(r); ok {
				events = append(events, KeystrokeEvent{
					Key:      string(wrong),
					Hold:     g.holdFor(wrong),
					PreDelay: msToDuration(flight),
				})
				// Noticing the mistake takes a beat, then Backspace.
				notice := 150 + g.rng.Float64()*250
				events = append(events, KeystrokeEvent{
					Key:      KeyBackspace,
					Hold:     g.backspaceHold(),
					PreDelay: msToDuration(notice),
				})
				// Retype the intended character at roughly base cadence.
				flight = g.jitterAndFloor(baseMs * 1.1)
			}
		}

		events = g.appendKey(events, r, msToDuration(flight))
		prev = r
	}
	return events
}

// appendKey emits the events for one intended character, inserting the
// zero-duration Shift-down pseudo-event for shifted characters. The Shift
// event inherits the flight delay so the bracketed key follows almost
// immediately.
func (g *StatisticalKeystrokes) appendKey(events []KeystrokeEvent, r rune, preDelay time.Duration) []KeystrokeEvent {
	if needsShift(r) {
		events = append(events, KeystrokeEvent{
			Key:      KeyShift,
			Hold:     0,
			PreDelay: preDelay,
		})
		preDelay = time.Duration(10+g.rng.Float64()*15) * time.Millisecond
	}
	return append(events, KeystrokeEvent{
		Key:      string(r),
		Hold:     g.holdFor(r),
		PreDelay: preDelay,
	})
}

// flightMs computes the pre-delay before a key, in milliseconds.
func (g *StatisticalKeystrokes) flightMs(baseMs float64, prev, r rune, first bool) float64 {
	if first {
		// Settling onto the keyboard before the first keypress.
		return 150 + g.rng.Float64()*250
	}
	f := baseMs
	if prev == ' ' {
		f *= 1.2 + g.rng.Float64()*0.5
	}
	if prev == '.' || prev == '!' || prev == '?' {
		f *= 2 + g.rng.Float64()*2
	}
	if commonDigraphs[strings.ToLower(string([]rune{prev, r}))] {
		f *= 0.6 + g.rng.Float64()*0.2
	}
	if isReachKey(r) {
		f *= 1.15 + g.rng.Float64()*0.15
	}
	return g.jitterAndFloor(f)
}

// jitterAndFloor applies +/- 15% jitter and the 20 ms minimum flight time.
func (g *StatisticalKeystrokes) jitterAndFloor(ms float64) float64 {
	ms *= 0.85 + g.rng.Float64()*0.30
	if ms < 20 {
		ms = 20
	}
	return ms
}

// holdFor samples how long a character key stays down.
func (g *StatisticalKeystrokes) holdFor(r rune) time.Duration {
	ms := 65 + g.rng.Float64()*70
	switch {
	case r == ' ':
		ms *= 1.1
	case isReachKey(r):
		ms *= 1.2
	}
	return msToDuration(ms)
}

func (g *StatisticalKeystrokes) backspaceHold() time.Duration {
	return msToDuration((65 + g.rng.Float64()*70) * 0.8)
}

// neighborOf picks an adjacent QWERTY key for r, if the layout knows one.
func (g *StatisticalKeystrokes) neighborOf(r rune) (rune, bool) {
	neighbors, ok := keyboardNeighbors[unicode.ToLower(r)]
	if !ok || len(neighbors) == 0 {
		return 0, false
	}
	return rune(neighbors[g.rng.Intn(len(neighbors))]), true
}

func needsShift(r rune) bool {
	return unicode.IsUpper(r) || shiftSymbols[r]
}

// isReachKey reports whether r sits off the home rows: digits, symbols, and
// the outer-column letters.
func isReachKey(r rune) bool {
	if unicode.IsDigit(r) {
		return true
	}
	switch unicode.ToLower(r) {
	case 'q', 'z', 'p', 'x':
		return true
	}
	return !unicode.IsLetter(r) && !unicode.IsSpace(r)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
