package store

import "strings"

// snippetWindow is the default context size in tokens.
const snippetWindow = 64

// buildSnippet assembles a display snippet from surface tokens. matched
// holds the indices of matched tokens; the window is centered on the first
// match, matched tokens inside the window get highlight markers, and "..."
// marks truncation on either side. Returns the snippet and the index of the
// first matched token (-1 when nothing matched).
func buildSnippet(surfaces []string, matched []int, window int) (string, int) {
	if len(surfaces) == 0 {
		return "", -1
	}
	if window <= 0 {
		window = snippetWindow
	}

	matchedSet := make(map[int]struct{}, len(matched))
	first := -1
	for _, idx := range matched {
		if idx < 0 || idx >= len(surfaces) {
			continue
		}
		matchedSet[idx] = struct{}{}
		if first == -1 || idx < first {
			first = idx
		}
	}

	start := 0
	if first > 0 {
		start = first - window/2
		if start < 0 {
			start = 0
		}
	}
	end := start + window
	if end > len(surfaces) {
		end = len(surfaces)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}

	prev := ""
	for i := start; i < end; i++ {
		tok := surfaces[i]
		if prev != "" && needsSpace(prev, tok) {
			b.WriteByte(' ')
		}
		if _, ok := matchedSet[i]; ok {
			b.WriteString(HighlightStart)
			b.WriteString(tok)
			b.WriteString(HighlightEnd)
		} else {
			b.WriteString(tok)
		}
		prev = tok
	}

	if end < len(surfaces) {
		b.WriteString("...")
	}

	return b.String(), first
}

// needsSpace decides whether a space belongs between adjacent tokens when
// reassembling text. Japanese runs back together; a space survives only
// between two ASCII word characters, so "Go modules" keeps its space while
// 吾輩/は/猫 does not.
func needsSpace(prev, next string) bool {
	return isASCIIWord(prev[len(prev)-1]) && isASCIIWord(next[0])
}

func isASCIIWord(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// matchedTokenIndices recovers matched token positions from FTS5 highlight
// output over a space-joined column. A token's index equals the number of
// spaces before it, so counting spaces up to each start marker yields the
// matched indices. A marked region spanning several tokens (FTS5 merges
// adjacent matches) contributes every token it covers.
func matchedTokenIndices(highlighted string, startMark, endMark byte) []int {
	var matched []int
	tokenIdx := 0
	inRegion := false

	for i := 0; i < len(highlighted); i++ {
		switch highlighted[i] {
		case startMark:
			matched = append(matched, tokenIdx)
			inRegion = true
		case endMark:
			inRegion = false
		case ' ':
			tokenIdx++
			if inRegion {
				matched = append(matched, tokenIdx)
			}
		}
	}

	return matched
}
