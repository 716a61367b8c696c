package upstream

import (
	"regexp"
	"strings"
)

var (
	lineBreakTags = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	openBlockTags = regexp.MustCompile(`(?i)<(?:p|div|ul|ol|li)(?:\s[^>]*)?>`)
	anyTag        = regexp.MustCompile(`<[^>]*>`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
	newlineRuns   = regexp.MustCompile(`\n{2,}`)
)

// entityReplacer decodes the fixed entity set the upstream editor emits.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// HTMLToText converts an HTML-ish note body into plain text: block and
// break tags become newlines, all other tags are stripped, a fixed set of
// entities is decoded, and @mention tokens survive untouched.
func HTMLToText(body string) string {
	if body == "" {
		return ""
	}

	text := lineBreakTags.ReplaceAllString(body, "\n")
	text = openBlockTags.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = entityReplacer.Replace(text)

	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRuns.ReplaceAllString(text, "\n")
	return strings.Trim(text, "\n ")
}
