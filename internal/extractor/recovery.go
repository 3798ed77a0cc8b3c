package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yoockh/yoocv/internal/models"
)

// Strategy identifies which step of the recovery chain produced a value.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyDirect
	StrategyBraceSlice
	StrategyTruncation
	StrategyFieldScrape
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyBraceSlice:
		return "brace_slice"
	case StrategyTruncation:
		return "truncation"
	case StrategyFieldScrape:
		return "field_scrape"
	default:
		return "none"
	}
}

// bytes dropped per truncation probe
const truncationStep = 40

// RecoverObject runs the parse chain for a JSON object embedded in model output.
func RecoverObject(raw string) (map[string]any, Strategy) {
	m, s, ok := recoverJSON[map[string]any](raw, '{', '}')
	if !ok || m == nil {
		return nil, StrategyNone
	}
	return m, s
}

// RecoverArray is RecoverObject for top-level arrays.
func RecoverArray(raw string) ([]any, Strategy) {
	a, s, ok := recoverJSON[[]any](raw, '[', ']')
	if !ok {
		return nil, StrategyNone
	}
	return a, s
}

func recoverJSON[T any](raw string, open, closer byte) (T, Strategy, bool) {
	var zero T

	cleaned := stripFences(raw)
	if strings.HasPrefix(cleaned, string(open)) {
		if v, ok := decode[T](cleaned); ok {
			return v, StrategyDirect, true
		}
	}

	start := strings.IndexByte(raw, open)
	if start < 0 {
		return zero, StrategyNone, false
	}
	if end := strings.LastIndexByte(raw, closer); end > start {
		if v, ok := decode[T](raw[start : end+1]); ok {
			return v, StrategyBraceSlice, true
		}
	}

	if v, ok := probeTruncated[T](raw[start:]); ok {
		return v, StrategyTruncation, true
	}
	return zero, StrategyNone, false
}

// probeTruncated walks back from the end of candidate in fixed steps, cutting at
// the last structural close and balancing whatever is still open. It gives up
// once less than half of the candidate would remain.
func probeTruncated[T any](candidate string) (T, bool) {
	var zero T
	half := len(candidate) / 2
	tried := make(map[int]bool)

	for end := len(candidate); end > half; end -= truncationStep {
		k := strings.LastIndexAny(candidate[:end], "}]")
		if k < half {
			break
		}
		if tried[k] {
			continue
		}
		tried[k] = true
		if v, ok := decode[T](balance(candidate[:k+1])); ok {
			return v, true
		}
	}
	return zero, false
}

// balance appends the closers for every bracket still open outside strings.
func balance(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(strings.TrimSpace(s), ","))
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

func decode[T any](s string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, false
	}
	return v, true
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

var (
	nameFieldRe    = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	emailFieldRe   = regexp.MustCompile(`"email"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	phoneFieldRe   = regexp.MustCompile(`"phone"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	summaryFieldRe = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	looseEmailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// scrapeFields pulls a minimal record out of output that is not JSON at all.
func scrapeFields(raw string) *models.StructuredRecord {
	var rec models.StructuredRecord
	rec.ContactInfo.Name = firstGroup(nameFieldRe, raw)
	rec.ContactInfo.Email = firstGroup(emailFieldRe, raw)
	if rec.ContactInfo.Email == "" {
		rec.ContactInfo.Email = looseEmailRe.FindString(raw)
	}
	rec.ContactInfo.Phone = firstGroup(phoneFieldRe, raw)
	rec.Summary = firstGroup(summaryFieldRe, raw)

	if rec.ContactInfo.Name == "" && rec.ContactInfo.Email == "" && rec.Summary == "" {
		return nil
	}
	return &rec
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &out); err != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(out)
}
