package utils

import (
	"regexp"
	"slices"
	"strings"

	"github.com/fatih/color"
)

// 6502 assembly highlighting colors
var (
	asmMnemonicColor  = color.New(color.FgYellow, color.Bold)
	asmImmediateColor = color.New(color.FgCyan)
	asmAddressColor   = color.New(color.FgMagenta)
	asmIndexColor     = color.New(color.FgGreen)
	asmLabelColor     = color.New(color.FgHiGreen)
	asmCommentColor   = color.New(color.FgHiBlack)
	asmBadColor       = color.New(color.FgRed, color.Bold)
)

var (
	// Mnemonic at the start of the line
	asmMnemonicPattern = regexp.MustCompile(`^\s*[A-Za-z]{3}\b`)
	// #$xx
	asmImmediatePattern = regexp.MustCompile(`#\$[0-9A-Fa-f]+`)
	// $xx or $xxxx
	asmAddressPattern = regexp.MustCompile(`\$[0-9A-Fa-f]+`)
	// ,X or ,Y
	asmIndexPattern = regexp.MustCompile(`,\s*[XYxy]\b`)
	// Symbolic operands
	asmLabelPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
	// ; comment
	asmCommentPattern = regexp.MustCompile(`;.*$`)
)

type token struct {
	text  string
	color *color.Color
	start int
	end   int
}

// Applies syntax highlighting to a line of 6502 assembly. BAD lines are
// highlighted as errors.
func HighlightAssembly(line string) string {
	if line == "" {
		return ""
	}

	var tokens []token

	add := func(pattern *regexp.Regexp, c *color.Color) {
		for _, match := range pattern.FindAllStringIndex(line, -1) {
			if !overlapsAny(match[0], match[1], tokens) {
				tokens = append(tokens, token{
					text:  line[match[0]:match[1]],
					color: c,
					start: match[0],
					end:   match[1],
				})
			}
		}
	}

	add(asmCommentPattern, asmCommentColor)

	if loc := asmMnemonicPattern.FindStringIndex(line); loc != nil && !overlapsAny(loc[0], loc[1], tokens) {
		mnemonic := strings.TrimSpace(line[loc[0]:loc[1]])
		start := loc[1] - len(mnemonic)
		c := asmMnemonicColor
		if strings.EqualFold(mnemonic, "BAD") {
			c = asmBadColor
		}
		tokens = append(tokens, token{text: mnemonic, color: c, start: start, end: loc[1]})
	}

	add(asmImmediatePattern, asmImmediateColor)
	add(asmAddressPattern, asmAddressColor)
	add(asmIndexPattern, asmIndexColor)
	add(asmLabelPattern, asmLabelColor)

	return buildHighlightedString(line, tokens)
}

func overlapsAny(start, end int, tokens []token) bool {
	for _, t := range tokens {
		if start < t.end && end > t.start {
			return true
		}
	}
	return false
}

func buildHighlightedString(code string, tokens []token) string {
	if len(tokens) == 0 {
		return code
	}

	slices.SortFunc(tokens, func(a, b token) int { return a.start - b.start })

	var result strings.Builder
	pos := 0

	for _, t := range tokens {
		if t.start > pos {
			result.WriteString(code[pos:t.start])
		}
		result.WriteString(t.color.Sprint(t.text))
		pos = t.end
	}

	if pos < len(code) {
		result.WriteString(code[pos:])
	}

	return result.String()
}
