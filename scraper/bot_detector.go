package scraper

import (
	"html"
	"regexp"
	"strings"
)

// DefaultBlockPhrases are markers of an interactive bot challenge
var DefaultBlockPhrases = []string{
	"press & hold",
	"verify you are human",
	"robot or human",
	"access to this page has been denied",
	"unusual traffic from your computer",
	"we detected unusual traffic",
	"unusual traffic",
}

// DefaultNotFoundPhrases are markers of a retailer reporting no results
var DefaultNotFoundPhrases = []string{
	"page you are looking for is not available",
	"page not found",
}

// PageSignals is what the detector read from one snapshot of page content
type PageSignals struct {
	Blocked     bool
	BlockReason string
	NotFound    bool
}

// BotDetector detects bot walls and "no results" pages by phrase
type BotDetector struct {
	blockPatterns    []*regexp.Regexp
	notFoundPatterns []*regexp.Regexp
}

// NewBotDetector creates a detector matching the given phrases case-insensitively
func NewBotDetector(blockPhrases, notFoundPhrases []string) *BotDetector {
	return &BotDetector{
		blockPatterns:    compilePhrases(blockPhrases),
		notFoundPatterns: compilePhrases(notFoundPhrases),
	}
}

// NewDefaultBotDetector creates a detector with the default phrase lists
func NewDefaultBotDetector() *BotDetector {
	return NewBotDetector(DefaultBlockPhrases, DefaultNotFoundPhrases)
}

func compilePhrases(phrases []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		// Collapse runs of whitespace so markup line breaks still match.
		words := strings.Fields(regexp.QuoteMeta(phrase))
		patterns = append(patterns, regexp.MustCompile(`(?i)`+strings.Join(words, `\s+`)))
	}
	return patterns
}

// Inspect scans page content for challenge and "no results" markers
func (bd *BotDetector) Inspect(pageContent string) PageSignals {
	content := html.UnescapeString(pageContent)

	var signals PageSignals
	for _, pattern := range bd.blockPatterns {
		if loc := pattern.FindStringIndex(content); loc != nil {
			signals.Blocked = true
			signals.BlockReason = strings.ToLower(content[loc[0]:loc[1]])
			break
		}
	}
	for _, pattern := range bd.notFoundPatterns {
		if pattern.MatchString(content) {
			signals.NotFound = true
			break
		}
	}
	return signals
}

// DetectBotWall reports whether the content shows a bot challenge and which phrase matched
func (bd *BotDetector) DetectBotWall(pageContent string) (bool, string) {
	signals := bd.Inspect(pageContent)
	return signals.Blocked, signals.BlockReason
}
