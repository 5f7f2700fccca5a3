// Package redact scrubs secrets out of prompt transcripts before git-ai
// persists them as companion objects alongside a checkpoint. Detection is
// layered: a Shannon-entropy heuristic over high-entropy token-shaped
// substrings, plus gitleaks' pattern library for the secret formats it
// recognizes by name. Either one flagging a span is enough to redact it.
package redact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// candidatePattern matches token-shaped substrings worth entropy-scoring;
// gitleaks' own regexes run over the full text independently.
var candidatePattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy (bits/char) for a
// candidate to be treated as a secret rather than an ordinary identifier.
const entropyThreshold = 4.5

var (
	detector     *detect.Detector
	detectorOnce sync.Once
)

func getDetector() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

type span struct{ start, end int }

// Redact returns s with every detected secret span replaced by "REDACTED".
func Redact(s string) string {
	spans := entropySpans(s)
	spans = append(spans, gitleaksSpans(s)...)
	if len(spans) == 0 {
		return s
	}
	return applySpans(s, spans)
}

func entropySpans(s string) []span {
	var spans []span
	for _, loc := range candidatePattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}
	return spans
}

func gitleaksSpans(s string) []span {
	d := getDetector()
	if d == nil {
		return nil
	}
	var spans []span
	for _, f := range d.DetectString(s) {
		if f.Secret == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(s[from:], f.Secret)
			if idx < 0 {
				break
			}
			abs := from + idx
			spans = append(spans, span{abs, abs + len(f.Secret)})
			from = abs + len(f.Secret)
		}
	}
	return spans
}

func applySpans(s string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(s[prev:sp.start])
		b.WriteString("REDACTED")
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Transcript redacts a prompt transcript payload. Payloads that parse as
// JSON Lines get field-aware redaction (skipping id-shaped and signature
// fields, and image/base64 attachments, which aren't secrets and would
// otherwise spuriously match the entropy heuristic); anything else falls
// back to whole-text redaction.
func Transcript(payload []byte) ([]byte, error) {
	s := string(payload)
	out, err := redactJSONLines(s)
	if err != nil {
		return nil, err
	}
	if out == s {
		return payload, nil
	}
	return []byte(out), nil
}

func redactJSONLines(content string) (string, error) {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			b.WriteString(line)
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			b.WriteString(Redact(line))
			continue
		}
		repls := collectReplacements(parsed)
		if len(repls) == 0 {
			b.WriteString(line)
			continue
		}
		result := line
		for _, r := range repls {
			origJSON, err := encodeJSONString(r[0])
			if err != nil {
				return "", err
			}
			replJSON, err := encodeJSONString(r[1])
			if err != nil {
				return "", err
			}
			result = strings.ReplaceAll(result, origJSON, replJSON)
		}
		b.WriteString(result)
	}
	return b.String(), nil
}

func collectReplacements(v any) [][2]string {
	seen := make(map[string]bool)
	var repls [][2]string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			if isOpaqueAttachment(val) {
				return
			}
			for k, child := range val {
				if isExcludedField(k) {
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range val {
				walk(child)
			}
		case string:
			redacted := Redact(val)
			if redacted != val && !seen[val] {
				seen[val] = true
				repls = append(repls, [2]string{val, redacted})
			}
		}
	}
	walk(v)
	return repls
}

// isExcludedField skips keys that legitimately contain high-entropy values
// with no secrecy to preserve: identifiers and cryptographic signatures.
func isExcludedField(key string) bool {
	if key == "signature" {
		return true
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, "id") || strings.HasSuffix(lower, "ids")
}

// isOpaqueAttachment skips embedded binary attachments (screenshots, etc.)
// that agent transcripts sometimes carry inline as base64.
func isOpaqueAttachment(obj map[string]any) bool {
	t, ok := obj["type"].(string)
	return ok && (strings.HasPrefix(t, "image") || t == "base64")
}

func encodeJSONString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("encoding json string: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
