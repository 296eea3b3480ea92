// Package extract recovers structured values from loosely formatted model output.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNoJSON       = errors.New("no JSON value found")
	ErrNoCandidates = errors.New("no candidates recovered")

	quotedLiteral = regexp.MustCompile(`"([^"]*)"`)
	leadingFence  = regexp.MustCompile("^```[a-zA-Z]*\\n")
	trailingFence = regexp.MustCompile("\\n```$")
)

// StripFences removes every Markdown code-fence marker, including a ```json opener.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// TrimFence strips a single leading ```lang line and a single trailing ``` line,
// leaving any fences inside the body alone.
func TrimFence(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ObjectSpan returns the substring from the first '{' to the last '}'.
func ObjectSpan(s string) (string, bool) {
	return span(s, '{', '}')
}

// ArraySpan returns the substring from the first '[' to the last ']'.
func ArraySpan(s string) (string, bool) {
	return span(s, '[', ']')
}

func span(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// JSON decodes the first usable JSON value in raw into v. It tries the fence-stripped
// text as a whole, then the outermost object, then the outermost array.
func JSON(raw string, v any) error {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	if obj, ok := ObjectSpan(cleaned); ok {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	if arr, ok := ArraySpan(cleaned); ok {
		if err := json.Unmarshal([]byte(arr), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// QuotedLiterals returns every double-quoted literal in raw, skipping blanks and the
// excluded words, capped at limit (limit <= 0 means no cap).
func QuotedLiterals(raw string, limit int, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	var out []string
	for _, m := range quotedLiteral.FindAllStringSubmatch(raw, -1) {
		lit := strings.TrimSpace(m[1])
		if lit == "" {
			continue
		}
		if _, ok := skip[lit]; ok {
			continue
		}
		out = append(out, lit)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

type keywordPayload struct {
	Keywords []string `json:"keywords"`
}

// KeywordsJSON parses {"keywords": [...]} (or a bare string array) out of raw.
func KeywordsJSON(raw string, limit int) ([]string, error) {
	var payload keywordPayload
	if err := JSON(raw, &payload); err == nil && len(payload.Keywords) > 0 {
		return clean(payload.Keywords, limit)
	}
	var list []string
	if err := JSON(raw, &list); err == nil && len(list) > 0 {
		return clean(list, limit)
	}
	return nil, ErrNoJSON
}

// KeywordsLoose is the pattern-match fallback for keyword output that is not valid JSON.
func KeywordsLoose(raw string, limit int) ([]string, error) {
	found := QuotedLiterals(raw, limit, "keywords")
	if len(found) == 0 {
		return nil, ErrNoCandidates
	}
	return found, nil
}

// Keywords applies the JSON tier then the loose tier.
func Keywords(raw string, limit int) ([]string, error) {
	if kws, err := KeywordsJSON(raw, limit); err == nil {
		return kws, nil
	}
	return KeywordsLoose(raw, limit)
}

func clean(in []string, limit int) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}
