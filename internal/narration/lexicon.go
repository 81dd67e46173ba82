package narration

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Preamble is spoken before every title so forced alignment has a fixed anchor
const Preamble = "This meme is titled "

// Lexicon replaces whole words and phrases, ignoring case, in a single pass.
// Longer entries win over shorter ones that share a prefix, so a phrase
// like "son of a bitch" is never split by its own words.
type Lexicon struct {
	table    map[string]string
	matchers []*regexp.Regexp
}

// NewLexicon compiles table into a lexicon. Keys are matched case-insensitively.
func NewLexicon(table map[string]string) *Lexicon {
	lower := make(map[string]string, len(table))
	keys := make([]string, 0, len(table))
	for k, v := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		lower[k] = v
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	// RE2 word boundaries are ASCII only, so keys are anchored here and
	// Unicode boundaries are checked in Apply.
	l := &Lexicon{table: lower, matchers: make([]*regexp.Regexp, len(keys))}
	for i, k := range keys {
		l.matchers[i] = regexp.MustCompile(`^(?i:` + regexp.QuoteMeta(k) + `)`)
	}
	return l
}

// Apply returns text with every listed word or phrase replaced
func (l *Lexicon) Apply(text string) string {
	if len(l.matchers) == 0 {
		return text
	}

	var b strings.Builder
	for i := 0; i < len(text); {
		if end, ok := l.matchAt(text, i); ok {
			match := text[i:end]
			if replacement, found := l.table[strings.ToLower(match)]; found {
				b.WriteString(replacement)
			} else {
				b.WriteString(match)
			}
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	return b.String()
}

// matchAt returns the end of the first entry matching at i with a word boundary on both sides
func (l *Lexicon) matchAt(text string, i int) (int, bool) {
	for _, m := range l.matchers {
		loc := m.FindStringIndex(text[i:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		end := i + loc[1]
		if boundary(text, i) && boundary(text, end) {
			return end, true
		}
	}
	return 0, false
}

// boundary reports whether a word starts or ends at i, counting any Unicode letter or digit as a word character
func boundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Len is the number of entries
func (l *Lexicon) Len() int {
	return len(l.table)
}

// Acronyms spells out chat shorthand so it is read naturally
var Acronyms = NewLexicon(map[string]string{
	"fr":   "for real",
	"idk":  "I don't know",
	"idek": "I don't even know",
	"omg":  "oh my gosh",
	"lol":  "laughing out loud",
	"brb":  "be right back",
	"btw":  "by the way",
	"tbh":  "to be honest",
	"smh":  "shaking my head",
	"lmao": "laughing my butt off",
	"imo":  "in my opinion",
	"imho": "in my humble opinion",
	"wtf":  "what the fudge",
	"wth":  "what the heck",
	"np":   "no problem",
	"ftw":  "for the win",
	"irl":  "in real life",
	"fyi":  "for your information",
	"asap": "as soon as possible",
	"bff":  "best friend forever",
	"jk":   "just kidding",
})

// Profanity softens swearing to family friendly substitutes
var Profanity = NewLexicon(map[string]string{
	"fuck":           "fudge",
	"fucking":        "freaking",
	"fucked":         "messed up",
	"shit":           "shoot",
	"shitty":         "crappy",
	"bitch":          "witch",
	"ass":            "butt",
	"asshole":        "jerk",
	"dick":           "jerk",
	"piss":           "pee",
	"pissed":         "annoyed",
	"damn":           "dang",
	"goddamn":        "gosh dang",
	"hell":           "heck",
	"crap":           "crud",
	"bastard":        "meanie",
	"slut":           "player",
	"hoe":            "mess",
	"whore":          "drama queen",
	"motherfucker":   "monster",
	"screw you":      "forget you",
	"son of a bitch": "piece of work",
})

// Expand spells out acronyms
func Expand(text string) string {
	return Acronyms.Apply(text)
}

// Sanitize softens profanity
func Sanitize(text string) string {
	return Profanity.Apply(text)
}

// PrepareText builds the exact text sent to synthesis and alignment:
// preamble and title, acronyms expanded, then profanity softened.
func PrepareText(title string) string {
	return Sanitize(Expand(Preamble + strings.TrimSpace(title)))
}
