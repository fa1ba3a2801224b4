package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/user/ideascan/internal/extractor"
)

const (
	maxSummaryLen = 240
	maxHintLen    = 220
	maxModelTags  = 3
	maxTagLen     = 24

	defaultProfit     = 50.0
	defaultConfidence = 0.5
)

// ErrMalformedReply is returned when a model reply holds no JSON object.
var ErrMalformedReply = errors.New("malformed model reply")

var (
	objectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	tagCharPattern = regexp.MustCompile(`[^a-z0-9_]+`)
)

// Assessment is the normalized judgement of one candidate.
type Assessment struct {
	ProfitScore      float64
	Confidence       float64
	Summary          string
	MonetizationHint string
	Tags             []string
}

// reply mirrors the JSON object the model is asked to return. Every field
// decodes leniently so that one bad value never rejects the whole reply.
type reply struct {
	ProfitScore      flexFloat   `json:"profit_score"`
	Confidence       flexFloat   `json:"confidence"`
	Summary          flexString  `json:"summary"`
	MonetizationHint flexString  `json:"monetization_hint"`
	ReasonTags       flexStrings `json:"reason_tags"`
}

// ParseAssessment decodes a model reply. Strict JSON is tried first, then
// the outermost {...} span, which covers replies wrapped in prose or code
// fences.
func ParseAssessment(text string) (*Assessment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedReply)
	}

	r, err := decodeReply([]byte(text))
	if err != nil {
		var syntax *json.SyntaxError
		if !errors.As(err, &syntax) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		span := objectPattern.FindString(text)
		if span == "" {
			return nil, fmt.Errorf("%w: no JSON object", ErrMalformedReply)
		}
		if r, err = decodeReply([]byte(span)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	}

	return &Assessment{
		ProfitScore:      r.ProfitScore.clamp(0, 100, defaultProfit),
		Confidence:       r.Confidence.clamp(0, 1, defaultConfidence),
		Summary:          extractor.Truncate(strings.TrimSpace(string(r.Summary)), maxSummaryLen),
		MonetizationHint: extractor.Truncate(strings.TrimSpace(string(r.MonetizationHint)), maxHintLen),
		Tags:             NormalizeTags(r.ReasonTags),
	}, nil
}

func decodeReply(data []byte) (*reply, error) {
	if t := bytes.TrimSpace(data); len(t) == 0 || t[0] != '{' {
		// Valid JSON that is not an object is rejected outright.
		if json.Valid(t) {
			return nil, errors.New("reply is not a JSON object")
		}
	}
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// NormalizeTags keeps the first three model tags, reduces them to
// snake_case ASCII and prefixes them with llm_.
func NormalizeTags(raw []string) []string {
	if len(raw) > maxModelTags {
		raw = raw[:maxModelTags]
	}
	seen := map[string]bool{}
	tags := []string{}
	for _, item := range raw {
		tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(item)), " ", "_")
		tag = tagCharPattern.ReplaceAllString(tag, "")
		if tag == "" {
			continue
		}
		if len(tag) > maxTagLen {
			tag = tag[:maxTagLen]
		}
		tag = "llm_" + tag
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.value, f.valid = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.value, f.valid = n, true
		}
	}
	return nil
}

func (f flexFloat) clamp(lo, hi, fallback float64) float64 {
	if !f.valid || f.value != f.value {
		return fallback
	}
	if f.value < lo {
		return lo
	}
	if f.value > hi {
		return hi
	}
	return f.value
}

// flexString accepts a string or any scalar, which is rendered as text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
	}
	return nil
}

// flexStrings accepts an array of strings or numbers. Anything else decodes
// to nil.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s flexString
		_ = s.UnmarshalJSON(item)
		out = append(out, string(s))
	}
	*f = out
	return nil
}
