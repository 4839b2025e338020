// Package text holds small, format-aware cleanup helpers applied to
// extracted document text before it reaches the tokenizer.
package text

import "regexp"

// CleanMarkdownNoise removes common documentation boilerplate from
// markdown before chunking: the patterns would never be useful in a
// retrieval context, and left in they waste tokenizer budget and
// dilute the embedding of the surrounding real content.
func CleanMarkdownNoise(text string) string {
	editLinkRe := regexp.MustCompile(`(?mi)^\[edit[^\]]*\]\([^\)]+\)\s*$`)
	text = editLinkRe.ReplaceAllString(text, "")

	tocRe := regexp.MustCompile(`(?mi)^#{1,3}\s+(?:table of )?contents?\s*\n(?:\s*[-*]\s*\[.*?\]\(#.*?\)\s*\n)*`)
	text = tocRe.ReplaceAllString(text, "")

	return text
}
