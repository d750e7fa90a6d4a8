package services

import (
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)

// SplitParagraphs splits text on blank-line boundaries. When the text has no
// blank lines it degrades to splitting on single newlines. Paragraphs are
// trimmed and empty ones dropped.
func SplitParagraphs(text string) []string {
	paras := make([]string, 0)
	for _, p := range blankLineRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) <= 1 {
		paras = paras[:0]
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				paras = append(paras, line)
			}
		}
	}
	return paras
}

// GroupParagraphs partitions paragraphs into consecutive chunks of up to
// groupSize entries and joins each chunk with a blank line. The last group
// may be smaller. groupSize below 1 is treated as 1.
func GroupParagraphs(paragraphs []string, groupSize int) []string {
	if groupSize < 1 {
		groupSize = 1
	}
	groups := make([]string, 0, (len(paragraphs)+groupSize-1)/groupSize)
	for i := 0; i < len(paragraphs); i += groupSize {
		end := i + groupSize
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		groups = append(groups, strings.Join(paragraphs[i:end], "\n\n"))
	}
	return groups
}
