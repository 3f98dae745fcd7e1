package bot

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks a reply into IRC-sized lines: one outbound line per
// text line, long lines split at the last space before the byte limit.
// Splits never land inside a UTF-8 sequence. Empty lines are dropped, the
// protocol cannot carry them.
func splitMessage(text string, limit int) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > limit {
			cut := strings.LastIndexByte(line[:limit], ' ')
			if cut <= 0 {
				cut = limit
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				if cut == 0 {
					cut = limit
				}
			}
			parts = append(parts, strings.TrimRight(line[:cut], " "))
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts
}
