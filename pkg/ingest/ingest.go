// Package ingest normalizes raw markdown notes into indexable content:
// front-matter extraction, tag collection and whitespace cleanup.
package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// tagPattern matches inline #tag tokens, including nested tags like
// #topic/subtopic.
var tagPattern = regexp.MustCompile(`(^|\s)#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)

// Note is the normalized form of a raw markdown note.
type Note struct {
	// Content is the note body with front-matter stripped and whitespace
	// trimmed.
	Content string

	// Tags collects #tag tokens from the body and any tags listed in the
	// front-matter, deduplicated and sorted.
	Tags []string

	// FrontMatter is the parsed YAML front-matter, or nil if the note has
	// none.
	FrontMatter map[string]any

	// WordCount is the number of whitespace-separated words in Content.
	WordCount int
}

// Options controls normalization.
type Options struct {
	// StripFrontMatter removes a leading YAML front-matter block from the
	// content. The block is still parsed into Note.FrontMatter.
	StripFrontMatter bool
}

// Normalize converts raw note text into its indexable form.
func Normalize(raw string, opts Options) (Note, error) {
	body := raw
	var fm map[string]any

	if block, rest, ok := splitFrontMatter(raw); ok {
		if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
			return Note{}, fmt.Errorf("parsing front-matter: %w", err)
		}
		if opts.StripFrontMatter {
			body = rest
		}
	}

	content := strings.TrimSpace(body)

	return Note{
		Content:     content,
		Tags:        collectTags(content, fm),
		FrontMatter: fm,
		WordCount:   len(strings.Fields(content)),
	}, nil
}

// splitFrontMatter detects a leading "---" delimited YAML block and returns
// (block, remainder, true) when present.
func splitFrontMatter(raw string) (string, string, bool) {
	trimmed := strings.TrimLeft(raw, "\uFEFF")
	if !strings.HasPrefix(trimmed, frontMatterDelimiter+"\n") &&
		trimmed != frontMatterDelimiter {
		return "", "", false
	}

	rest := strings.TrimPrefix(trimmed, frontMatterDelimiter+"\n")
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx < 0 {
		return "", "", false
	}

	block := rest[:idx]
	remainder := rest[idx+len("\n"+frontMatterDelimiter):]
	remainder = strings.TrimPrefix(remainder, "\n")

	return block, remainder, true
}

// collectTags merges inline #tags with front-matter tag lists.
func collectTags(content string, fm map[string]any) []string {
	seen := map[string]struct{}{}

	for _, match := range tagPattern.FindAllStringSubmatch(content, -1) {
		seen[match[2]] = struct{}{}
	}

	if fm != nil {
		switch tags := fm["tags"].(type) {
		case []any:
			for _, t := range tags {
				if s, ok := t.(string); ok && s != "" {
					seen[strings.TrimPrefix(s, "#")] = struct{}{}
				}
			}
		case string:
			for _, s := range strings.Split(tags, ",") {
				s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
				if s != "" {
					seen[s] = struct{}{}
				}
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)

	return out
}
