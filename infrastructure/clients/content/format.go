// Package content holds the message formatting helpers shared by every platform adapter.
package content

import (
	"strings"

	"crm-social/domain/model"
)

// NormalizeTags returns tags prefixed with prefix, lower-cased for dedup but
// keeping their first spelling and the caller's order.
func NormalizeTags(tags []string, prefix rune) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		t = strings.TrimLeft(t, string(prefix))
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, string(prefix)+t)
	}
	return out
}

// ExtractHashtags finds #tags already present in text.
func ExtractHashtags(text string) []string {
	var tags []string
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '#' {
			continue
		}
		word := strings.Builder{}
		word.WriteRune('#')
		j := i + 1
		for j < len(runes) {
			r := runes[j]
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
				word.WriteRune(r)
				j++
				continue
			}
			break
		}
		if tag := word.String(); len(tag) > 1 {
			tags = append(tags, tag)
		}
		i = j - 1
	}
	return tags
}

// Caption composes body, hashtags and mentions into one text block. Hashtags
// that already appear in the body are not repeated. With includeTitle the
// title leads the caption, for platforms that have no separate title field.
func Caption(req *model.PublishRequest, includeTitle bool) string {
	if req == nil {
		return ""
	}
	existing := make(map[string]struct{})
	for _, t := range ExtractHashtags(req.Title + " " + req.Body) {
		existing[strings.ToLower(t)] = struct{}{}
	}
	var tags []string
	for _, t := range NormalizeTags(req.Hashtags, '#') {
		if _, ok := existing[strings.ToLower(t)]; !ok {
			tags = append(tags, t)
		}
	}

	parts := make([]string, 0, 4)
	if includeTitle && strings.TrimSpace(req.Title) != "" {
		parts = append(parts, strings.TrimSpace(req.Title))
	}
	if strings.TrimSpace(req.Body) != "" {
		parts = append(parts, strings.TrimSpace(req.Body))
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	if mentions := NormalizeTags(req.Mentions, '@'); len(mentions) > 0 {
		parts = append(parts, strings.Join(mentions, " "))
	}
	return strings.Join(parts, "\n\n")
}

// Truncate cuts s to max runes, ending with an ellipsis when shortened.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
