package runner

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultRateLimitSeconds is the conservative cooldown applied when the
// surface signals a rate limit without stating a duration.
const DefaultRateLimitSeconds = 15 * 60

// rateLimitPhrases are status fragments, in the languages the remote
// surface is known to render, that indicate a cooldown is in effect.
// Matching is done on case-folded text.
var rateLimitPhrases = []string{
	"rate limit",
	"try again",
	"too many requests",
	"please wait",
	"请稍后",
	"请等待",
	"达到上限",
	"请求过于频繁",
}

var (
	minutePattern = regexp.MustCompile(`(\d+)\s*(minutes?|mins?|分钟)`)
	secondPattern = regexp.MustCompile(`(\d+)\s*(seconds?|secs?|秒)`)
	hourPattern   = regexp.MustCompile(`(\d+)\s*(hours?|hrs?|小时)`)
)

var foldCaser = cases.Fold()

// RateLimitSignal is a detected cooldown: how long to wait and the
// status line that triggered detection.
type RateLimitSignal struct {
	WaitSeconds int
	Message     string
}

// DetectRateLimit scans remote status text for rate-limit phrasing.
// When a phrase matches, the wait duration is parsed from the text or
// falls back to DefaultRateLimitSeconds.
func DetectRateLimit(bodyText string) (RateLimitSignal, bool) {
	if strings.TrimSpace(bodyText) == "" {
		return RateLimitSignal{}, false
	}

	folded := foldCaser.String(bodyText)
	hit := false
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(folded, phrase) {
			hit = true
			break
		}
	}
	if !hit {
		return RateLimitSignal{}, false
	}

	wait := ParseWaitSeconds(bodyText)
	if wait <= 0 {
		wait = DefaultRateLimitSeconds
	}

	return RateLimitSignal{
		WaitSeconds: wait,
		Message:     summaryLine(bodyText, folded),
	}, true
}

// ParseWaitSeconds extracts an explicit wait duration from a message,
// supporting minute, second and hour units in English and Chinese.
// Returns 0 when no duration is stated.
func ParseWaitSeconds(message string) int {
	folded := foldCaser.String(message)

	if m := minutePattern.FindStringSubmatch(folded); m != nil {
		if minutes, err := strconv.Atoi(m[1]); err == nil && minutes > 0 {
			return minutes * 60
		}
	}
	if m := secondPattern.FindStringSubmatch(folded); m != nil {
		if seconds, err := strconv.Atoi(m[1]); err == nil && seconds > 0 {
			return seconds
		}
	}
	if m := hourPattern.FindStringSubmatch(folded); m != nil {
		if hours, err := strconv.Atoi(m[1]); err == nil && hours > 0 {
			return hours * 3600
		}
	}
	return 0
}

// summaryLine picks the first line of the original text whose folded
// form contains a rate-limit phrase, for use as the failure reason.
func summaryLine(bodyText, folded string) string {
	rawLines := strings.Split(bodyText, "\n")
	foldedLines := strings.Split(folded, "\n")
	for i, line := range foldedLines {
		if i >= len(rawLines) {
			break
		}
		for _, phrase := range rateLimitPhrases {
			if strings.Contains(line, phrase) {
				return strings.TrimSpace(rawLines[i])
			}
		}
	}
	return "rate limit detected"
}
