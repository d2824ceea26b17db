package outgoing

import "unicode/utf8"

// SplitLongMessage implements spec.md §4.7's _split_long_message: break
// text into pieces no longer than maxLen runes, preserving UTF-8 code
// points and preferring a split boundary at a newline, then a sentence
// terminator, then whitespace, falling back to a hard break only when no
// boundary exists in range.
func SplitLongMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	runes := []rune(text)
	var pieces []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			pieces = append(pieces, string(runes))
			break
		}
		cut := bestBoundary(runes, maxLen)
		pieces = append(pieces, string(runes[:cut]))
		runes = runes[cut:]
	}
	return pieces
}

// bestBoundary finds the split point within runes[:maxLen], preferring
// (in order) the last newline, the last sentence terminator, the last
// whitespace run, else a hard cut at maxLen.
func bestBoundary(runes []rune, maxLen int) int {
	window := runes[:maxLen]

	if i := lastIndexOf(window, '\n'); i > 0 {
		return i + 1
	}
	if i := lastIndexAny(window, ".!?"); i > 0 {
		return i + 1
	}
	if i := lastIndexOf(window, ' '); i > 0 {
		return i + 1
	}
	return maxLen
}

func lastIndexOf(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func lastIndexAny(runes []rune, targets string) int {
	for i := len(runes) - 1; i >= 0; i-- {
		for _, t := range targets {
			if runes[i] == t {
				return i
			}
		}
	}
	return -1
}

// ChunkAttachments groups attachment ids into batches no larger than
// maxPerMessage, per spec.md §4.7 "attachments are chunked by
// max_attachments_per_message".
func ChunkAttachments(ids []string, maxPerMessage int) [][]string {
	if maxPerMessage <= 0 {
		return [][]string{ids}
	}
	var chunks [][]string
	for len(ids) > 0 {
		n := maxPerMessage
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	if len(chunks) == 0 {
		chunks = append(chunks, nil)
	}
	return chunks
}
