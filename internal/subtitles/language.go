package subtitles

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2/T
	alt3    string   // ISO 639-2/B when it differs
	display string   // Human-readable name
	words   []string // Lowercase word forms
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "español", "espanol"}},
	{"fr", "fra", "fre", "French", []string{"french", "français", "francais"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", []string{"italian", "italiano"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese", "português", "portugues"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
	{"id", "ind", "", "Indonesian", []string{"indonesian"}},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}},
	{"th", "tha", "", "Thai", []string{"thai"}},
	{"el", "ell", "gre", "Greek", []string{"greek"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
	{"cs", "ces", "cze", "Czech", []string{"czech"}},
	{"hu", "hun", "", "Hungarian", []string{"hungarian"}},
	{"ro", "ron", "rum", "Romanian", []string{"romanian"}},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// codePattern matches things that look like language tags ("pt", "pt-BR", "es_419")
var codePattern = regexp.MustCompile(`^[a-z]{2,3}(?:[-_][A-Za-z0-9]{2,8})*$`)

// hearingImpairedPattern matches the SDH and CC markers used in subtitle labels
var hearingImpairedPattern = regexp.MustCompile(`(?i)(?:^|[^a-z])(sdh|cc)(?:[^a-z]|$)`)

// UnknownLanguage labels tracks that carry no language at all
const UnknownLanguage = "Unknown"

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// NormalizeLanguage maps ISO 639 codes and known words to a display name.
// Valid BCP 47 tags the table does not list are named through x/text;
// anything else is returned trimmed but otherwise unchanged.
func NormalizeLanguage(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownLanguage
	}
	if e := lookup(label); e != nil {
		return e.display
	}
	if strings.EqualFold(label, "und") {
		return UnknownLanguage
	}

	if IsHearingImpairedLabel(label) || !codePattern.MatchString(label) {
		return label
	}
	tag, err := language.Parse(strings.ReplaceAll(label, "_", "-"))
	if err != nil {
		return label
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return label
}

// ISO2 returns the two-letter code for a code, word or display name, or ""
func ISO2(label string) string {
	if e := lookup(label); e != nil {
		return e.code2
	}
	return ""
}

// IsHearingImpairedLabel reports whether a label carries an SDH or CC marker
func IsHearingImpairedLabel(label string) bool {
	return hearingImpairedPattern.MatchString(label)
}

// SameLanguage reports whether two labels name the same language once normalized
func SameLanguage(a, b string) bool {
	na, nb := NormalizeLanguage(a), NormalizeLanguage(b)
	if strings.EqualFold(na, nb) {
		return true
	}
	ca, cb := ISO2(na), ISO2(nb)
	return ca != "" && ca == cb
}
