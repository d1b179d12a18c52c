// Package textstats derives content and interaction descriptors from raw text.
package textstats

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

const (
	idealSentenceWords = 15.0
	sentenceSpread     = 25.0
	longWordLetters    = 6
	charsPerSecondNorm = 8.0
)

// #region content
// AnalyzeContent scores learning material for clarity, complexity and structure.
// Empty text scores zero on every field.
func AnalyzeContent(text string) outcome.ContentAnalysis {
	counts := sentenceWordCounts(text)
	if len(counts) == 0 {
		return outcome.ContentAnalysis{}
	}
	ws := words(text)
	avg := mean(counts)

	clarity := clamp(1 - math.Abs(avg-idealSentenceWords)/sentenceSpread)
	complexity := clamp(0.5*longWordRatio(ws)*2 + 0.5*avg/40)

	paragraphs := float64(paragraphCount(text))
	structure := clamp(0.4*math.Min(1, paragraphs/3) +
		0.3*clamp(listLineRatio(text)*3) +
		0.3*(1-clamp(coefficientOfVariation(counts))))

	return outcome.ContentAnalysis{Clarity: clarity, Complexity: complexity, Structure: structure}
}

// #endregion content

// #region interaction
// SummarizeInteraction describes one user input. typing is the time spent
// entering text; elapsed is the time since the session started.
func SummarizeInteraction(text string, typing, elapsed time.Duration) update.InteractionSummary {
	ws := words(text)
	chars := utf8.RuneCountInString(text)

	var speed float64
	if typing > 0 {
		speed = clamp(float64(chars) / typing.Seconds() / charsPerSecondNorm)
	}

	var complexity float64
	if len(ws) > 0 {
		complexity = clamp(0.5*lexicalDiversity(contentWords(ws)) + 0.5*longWordRatio(ws)*2)
	}

	return update.InteractionSummary{
		InputLength: chars,
		TypingSpeed: speed,
		Complexity:  complexity,
		Elapsed:     elapsed,
		WordCount:   len(ws),
	}
}

// #endregion interaction

// #region helpers
func sentenceWordCounts(text string) []float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var counts []float64
	for _, s := range sentences {
		if n := len(words(s)); n > 0 {
			counts = append(counts, float64(n))
		}
	}
	return counts
}

func longWordRatio(ws []string) float64 {
	if len(ws) == 0 {
		return 0
	}
	long := 0
	for _, w := range ws {
		letters := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters > longWordLetters {
			long++
		}
	}
	return float64(long) / float64(len(ws))
}

func lexicalDiversity(ws []string) float64 {
	if len(ws) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(ws))
	for _, w := range ws {
		seen[w] = true
	}
	return float64(len(seen)) / float64(len(ws))
}

// paragraphCount counts blocks separated by blank lines.
func paragraphCount(text string) int {
	n := 0
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			inBlock = false
			continue
		}
		if !inBlock {
			n++
			inBlock = true
		}
	}
	return n
}

// listLineRatio is the share of non-blank lines that are bullet or numbered items.
func listLineRatio(text string) float64 {
	total, items := 0, 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if isListItem(line) {
			items++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(items) / float64(total)
}

func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return true
	}
	digits := 0
	for _, r := range line {
		if !unicode.IsDigit(r) {
			break
		}
		digits++
	}
	return digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')')
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func coefficientOfVariation(xs []float64) float64 {
	m := mean(xs)
	if m == 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss/float64(len(xs))) / m
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
