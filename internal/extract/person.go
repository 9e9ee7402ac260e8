package extract

import (
	"regexp"
	"strings"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// connectorTokens are the gap tokens allowed inside a name sequence.
var connectorTokens = map[string]struct{}{
	"and": {}, "von": {}, "van": {}, "de": {}, "la": {},
	"le": {}, "del": {}, "du": {},
}

// founderNames are surnames that overwhelmingly denote the company, not the
// person, in modern text.
var founderNames = map[string]struct{}{
	"ford": {}, "disney": {}, "dell": {}, "chrysler": {}, "boeing": {},
	"hilton": {}, "chanel": {}, "bentley": {}, "harley": {}, "deere": {},
	"porsche": {}, "ferrari": {}, "siemens": {}, "philips": {},
}

var techCompanies = map[string]struct{}{
	"apple": {}, "google": {}, "microsoft": {}, "amazon": {}, "oracle": {},
	"cisco": {}, "intel": {}, "adobe": {}, "tesla": {}, "nvidia": {},
	"meta": {}, "ibm": {}, "salesforce": {},
}

// commonWordNames reject single-token candidates that double as ordinary
// English words.
var commonWordNames = map[string]struct{}{
	"mark": {}, "bill": {}, "rose": {}, "grant": {}, "hope": {},
	"penny": {}, "jack": {}, "frank": {}, "art": {}, "june": {},
	"may": {}, "dawn": {}, "guy": {}, "will": {}, "miles": {},
	"sunny": {}, "wade": {},
}

// geoPubKeywords reject candidates overlapping geographic or publication
// names.
var geoPubKeywords = map[string]struct{}{
	"washington": {}, "jackson": {}, "houston": {}, "austin": {},
	"dallas": {}, "phoenix": {}, "denver": {}, "cleveland": {},
	"times": {}, "post": {}, "journal": {}, "tribune": {}, "herald": {},
	"globe": {}, "gazette": {}, "chronicle": {},
}

// Context regexes, all compiled once. RE2 semantics throughout; "not followed
// by" style conditions are expressed as post-checks, never lookaround.
var (
	titlePrefixRe = regexp.MustCompile(`(?i)\b(mr|mrs|ms|dr|prof|professor|rev|sen|senator|rep|gov|governor|capt|captain|col|colonel|gen|general|judge)\.?\s+$`)
	nameSuffixRe  = regexp.MustCompile(`(?i)^,?\s?(jr\.?|sr\.?|iii|ii|iv|phd|md|esq\.?)\b`)
	actionVerbRe  = regexp.MustCompile(`(?i)\b(said|says|stated|announced|wrote|testified|argued|told|explained|reported|noted|claimed|added)\b`)
	bioMarkerRe   = regexp.MustCompile(`(?i)\b(was born|died|graduated|founded|invented|retired|married|grew up|studied at)\b`)
	roleSuffixRe  = regexp.MustCompile(`(?i)^,\s?(ceo|cfo|cto|coo|president|vice president|chairman|chairwoman|director|founder|co-founder|manager|officer|secretary|spokesperson)\b`)
	orgSuffixRe   = regexp.MustCompile(`(?i)^\s?,?\s?(inc|corp|corporation|incorporated|llc|ltd|limited|company|co|group|holdings|industries|technologies|systems|solutions)\b\.?`)
	atFromRe      = regexp.MustCompile(`(?i)\b(at|from)\s+$`)
	announcedRe   = regexp.MustCompile(`(?i)^\s+announced its\b`)
)

const (
	maxGap        = 20
	beforeWindow  = 30
	contextWindow = 100
	orgWindow     = 50
)

// PersonRecognizer validates person candidates assembled from first- and
// last-name dictionary hits, using position-aware validity plus contextual
// evidence scoring. It holds no per-document state and is safe for
// concurrent use.
type PersonRecognizer struct {
	orgs          *Automaton
	minConfidence float64
}

// NewPersonRecognizer creates a person recognizer. The organization automaton
// feeds the org filter; minConfidence is the accept threshold.
func NewPersonRecognizer(orgs *Automaton, minConfidence float64) *PersonRecognizer {
	return &PersonRecognizer{orgs: orgs, minConfidence: minConfidence}
}

// Recognize assembles candidate sequences from the sorted name hits, filters
// them, and returns scored PERSON mentions.
func (r *PersonRecognizer) Recognize(text string, hits []NameHit) []document.Mention {
	var mentions []document.Mention
	for _, seq := range assembleSequences(text, hits) {
		if m, ok := r.validate(text, seq); ok {
			mentions = append(mentions, m)
		}
	}
	sortMentions(mentions)
	return mentions
}

// assembleSequences groups adjacent name hits whose gaps are empty, a middle
// initial, or a connector token. Gaps over maxGap characters break the run.
func assembleSequences(text string, hits []NameHit) [][]NameHit {
	var sequences [][]NameHit
	var current []NameHit

	flush := func() {
		if len(current) > 0 {
			sequences = append(sequences, current)
			current = nil
		}
	}

	for _, hit := range hits {
		if len(current) == 0 {
			current = []NameHit{hit}
			continue
		}
		prev := current[len(current)-1]
		if hit.Span.Start < prev.Span.End {
			// Overlapping hit inside the run, e.g. a shorter name nested in
			// a longer one; the earlier, longer hit wins.
			continue
		}
		gap := text[prev.Span.End:hit.Span.Start]
		if len(gap) > maxGap || !validGap(gap) {
			flush()
			current = []NameHit{hit}
			continue
		}
		current = append(current, hit)
	}
	flush()
	return sequences
}

// validGap accepts empty gaps, a single alphabetic character, a middle
// initial with period, or a connector token.
func validGap(gap string) bool {
	trimmed := strings.TrimSpace(gap)
	switch {
	case trimmed == "":
		return true
	case len(trimmed) == 1 && isAlpha(trimmed[0]):
		return true
	case len(trimmed) == 2 && isAlpha(trimmed[0]) && trimmed[1] == '.':
		return true
	default:
		_, ok := connectorTokens[strings.ToLower(trimmed)]
		return ok
	}
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// validate applies position validity, the blacklist and organization
// filters, and additive evidence scoring to one candidate sequence.
func (r *PersonRecognizer) validate(text string, seq []NameHit) (document.Mention, bool) {
	start := seq[0].Span.Start
	end := seq[len(seq)-1].Span.End
	candidate := text[start:end]
	candLower := strings.ToLower(candidate)

	// Position-aware validity: first name leads, last name closes.
	if len(seq) >= 2 {
		if !seq[0].IsFirst || !seq[len(seq)-1].IsLast {
			return document.Mention{}, false
		}
	} else if !seq[0].IsFirst {
		return document.Mention{}, false
	}

	// Blacklists.
	if _, found := founderNames[candLower]; found {
		return document.Mention{}, false
	}
	if _, found := techCompanies[candLower]; found {
		return document.Mention{}, false
	}
	if len(seq) == 1 {
		if _, found := commonWordNames[candLower]; found {
			return document.Mention{}, false
		}
	}
	for _, tok := range strings.Fields(candLower) {
		if _, found := geoPubKeywords[strings.Trim(tok, ".,")]; found {
			return document.Mention{}, false
		}
	}

	before := text[maxInt(0, start-beforeWindow):start]
	after := text[end:minInt(len(text), end+orgWindow)]
	window := text[maxInt(0, start-contextWindow):minInt(len(text), end+contextWindow)]

	// Organization filter.
	if r.orgs != nil && r.orgs.Contains(candLower) {
		return document.Mention{}, false
	}
	if orgSuffixRe.MatchString(after) || announcedRe.MatchString(after) {
		return document.Mention{}, false
	}
	if atFromRe.MatchString(before) && len(seq) == 1 {
		return document.Mention{}, false
	}

	// Evidence scoring.
	score := 0.7
	if len(seq) == 1 {
		score = 0.5
	}
	var evidence []string

	titleLoc := titlePrefixRe.FindStringIndex(before)
	if titleLoc != nil {
		score += 0.3
		evidence = append(evidence, "title_prefix")
	}
	if actionVerbRe.MatchString(window) {
		score += 0.2
		evidence = append(evidence, "action_verb")
	}
	if bioMarkerRe.MatchString(window) {
		score += 0.3
		evidence = append(evidence, "biographical_marker")
	}
	if roleSuffixRe.MatchString(after) {
		score += 0.2
		evidence = append(evidence, "role_suffix")
	}
	if nameSuffixRe.MatchString(after) {
		score += 0.1
		evidence = append(evidence, "name_suffix")
	}
	if len(seq) >= 2 {
		score += 0.2
		evidence = append(evidence, "multi_token")
	}
	if score > 1.0 {
		score = 1.0
	}

	// Single names need strong person context on top of being known first
	// names.
	if len(seq) == 1 && titleLoc == nil &&
		!actionVerbRe.MatchString(window) && !bioMarkerRe.MatchString(window) {
		return document.Mention{}, false
	}

	if score < r.minConfidence {
		return document.Mention{}, false
	}

	// Include a matched title in the mention surface so normalization sees
	// the full spoken form.
	if titleLoc != nil {
		start = start - (len(before) - titleLoc[0])
	}

	return document.Mention{
		Span:       document.Span{Start: start, End: end},
		Text:       text[start:end],
		Kind:       document.KindPerson,
		Confidence: score,
		Evidence:   evidence,
	}, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
