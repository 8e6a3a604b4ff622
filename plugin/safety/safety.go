// Package safety screens untrusted user text for prompt-injection attempts
// before it reaches the router or the model provider.
package safety

import (
	"expvar"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/procura/procura/internal/apperr"
)

// Severity grades a detection.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Category names a family of adversarial patterns.
type Category string

const (
	CategoryInstructionOverride Category = "instruction_override"
	CategorySystemPromptLeak    Category = "system_prompt_leak"
	CategoryRoleManipulation    Category = "role_manipulation"
	CategoryCommandInjection    Category = "command_injection"
	CategoryDelimiterInjection  Category = "delimiter_injection"
	CategoryJailbreak           Category = "jailbreak"
	CategorySuspiciousSequence  Category = "suspicious_sequence"
)

// Result is the outcome of inspecting one message.
type Result struct {
	Detected        bool
	MatchedPatterns []Category
	Severity        Severity
	SanitizedText   string
}

// Rejections counts rejected messages per category, published under
// /debug/vars.
var Rejections = expvar.NewMap("safety_rejections")

type pattern struct {
	category Category
	re       *regexp.Regexp
}

var patterns = []pattern{
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)\b(ignore|disregard|forget|skip)\s+(all\s+|any\s+)?(the\s+|your\s+|my\s+)?(previous|prior|above|earlier|preceding|initial)\s+(instructions?|prompts?|rules|directions|context)`)},
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)\b(override|overwrite|replace)\s+(your|the)\s+(instructions|rules|system\s+prompt|guidelines)`)},
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)\bforget\s+(everything|all)\s+(you|that|above)`)},
	{CategorySystemPromptLeak, regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output|display|leak|dump|tell\s+me)\s+(me\s+)?(your|the)\s+(system|initial|hidden|original|secret)\s+(prompt|instructions|message)`)},
	{CategorySystemPromptLeak, regexp.MustCompile(`(?i)\bwhat\s+(is|are|was|were)\s+your\s+(system\s+prompt|initial\s+instructions|hidden\s+instructions)`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(a|an|the|my|in)\b`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)\bact\s+as\s+(a|an|the|if|my)\b`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are|that\s+you)\b`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)\b(roleplay|role-play)\s+as\b`)},
	{CategoryRoleManipulation, regexp.MustCompile(`(?i)\bfrom\s+now\s+on,?\s+you\s+(are|will|must)\b`)},
	{CategoryCommandInjection, regexp.MustCompile(`(?i)(;|&&|\|\|)\s*(rm|curl|wget|bash|sh|nc|chmod|sudo)\b`)},
	{CategoryCommandInjection, regexp.MustCompile(`\$\([^)]*\)`)},
	{CategoryCommandInjection, regexp.MustCompile(`(?i)\b(exec|eval|system|os\.system|subprocess\.\w+)\(`)},
	{CategoryCommandInjection, regexp.MustCompile(`(?i)<\s*script\b`)},
	{CategoryCommandInjection, regexp.MustCompile(`(?i)\b(drop\s+table|union\s+select|;\s*delete\s+from)\b`)},
	{CategoryDelimiterInjection, regexp.MustCompile(`(?i)\[\s*/?\s*(system|inst|assistant|admin)\s*\]`)},
	{CategoryDelimiterInjection, regexp.MustCompile(`(?i)<\|?\s*(im_start|im_end|system|endoftext)\s*\|?>`)},
	{CategoryDelimiterInjection, regexp.MustCompile("(?i)```\\s*(system|instructions?|prompt)\\b")},
	{CategoryDelimiterInjection, regexp.MustCompile(`(?i)#{2,}\s*(system|instruction|new\s+instructions)\b`)},
	{CategoryDelimiterInjection, regexp.MustCompile(`(?i)</?\s*system\s*>`)},
	{CategoryJailbreak, regexp.MustCompile(`(?i)\b(dan\s+mode|do\s+anything\s+now|developer\s+mode|god\s+mode)\b`)},
	{CategoryJailbreak, regexp.MustCompile(`(?i)\bjailbr(eak|oken)\b`)},
	{CategoryJailbreak, regexp.MustCompile(`(?i)\bwithout\s+(any\s+)?(restrictions|filters|limitations|guardrails)\b`)},
	{CategoryJailbreak, regexp.MustCompile(`(?i)\bbypass\s+(your\s+|the\s+|all\s+)?(safety|filters?|restrictions|guidelines|guardrails)\b`)},
}

const maxRepeatedRun = 25

var encodedBlob = regexp.MustCompile(`[A-Za-z0-9+/=]{120,}`)

func isHidden(r rune) bool {
	return (unicode.IsControl(r) && r != '\n' && r != '\t') || unicode.Is(unicode.Cf, r)
}

// Gate is the input safety gate. In strict mode any detection is rejected;
// otherwise only high severity is.
type Gate struct {
	strict bool
}

// NewGate returns a safety gate.
func NewGate(strict bool) *Gate {
	return &Gate{strict: strict}
}

// Sanitize strips control and invisible format characters, applies NFKC and
// collapses whitespace. It never rewrites meaning.
func Sanitize(text string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.Predicate(isHidden)))
	cleaned, _, err := transform.String(t, text)
	if err != nil {
		cleaned = text
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// Inspect classifies text without rejecting it.
func (g *Gate) Inspect(text string) Result {
	sanitized := Sanitize(text)
	result := Result{Severity: SeverityLow, SanitizedText: sanitized}

	seen := map[Category]bool{}
	for _, p := range patterns {
		if seen[p.category] {
			continue
		}
		// Sanitized text defeats zero-width splitting; raw text keeps
		// delimiter layouts that whitespace collapsing would hide.
		if p.re.MatchString(sanitized) || p.re.MatchString(text) {
			seen[p.category] = true
			result.MatchedPatterns = append(result.MatchedPatterns, p.category)
		}
	}
	if len(result.MatchedPatterns) > 0 {
		result.Detected = true
		result.Severity = SeverityHigh
		return result
	}

	if suspicious(text, sanitized) {
		result.Detected = true
		result.MatchedPatterns = []Category{CategorySuspiciousSequence}
		result.Severity = SeverityMedium
	}
	return result
}

// Check inspects text and returns an Unsafe error when policy rejects it.
// The returned result is always populated.
func (g *Gate) Check(text string) (Result, error) {
	result := g.Inspect(text)
	if !result.Detected {
		return result, nil
	}
	if result.Severity != SeverityHigh && !g.strict {
		slog.Info("input safety gate allowed suspicious message",
			"categories", result.MatchedPatterns, "severity", result.Severity, "length", len(text))
		return result, nil
	}

	categories := make([]string, 0, len(result.MatchedPatterns))
	for _, c := range result.MatchedPatterns {
		Rejections.Add(string(c), 1)
		categories = append(categories, string(c))
	}
	slog.Warn("input rejected by safety gate",
		"categories", categories, "severity", result.Severity, "length", len(text))
	return result, apperr.Unsafe(categories)
}

func suspicious(raw, sanitized string) bool {
	controls := 0
	for _, r := range raw {
		if isHidden(r) {
			controls++
		}
	}
	if controls >= 3 {
		return true
	}
	if longestRun(sanitized) >= maxRepeatedRun || encodedBlob.MatchString(sanitized) {
		return true
	}

	letters, symbols := 0, 0
	for _, r := range sanitized {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			letters++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbols++
		}
	}
	total := letters + symbols
	return total >= 24 && symbols*2 > total
}

func longestRun(s string) int {
	best, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
