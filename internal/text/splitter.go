// Package text provides chapter text segmentation for speech synthesis.
package text

import "strings"

// DefaultMaxChunkLength is the default upper bound, in characters, of a chunk
// sent to the speech engine in a single call.
const DefaultMaxChunkLength = 400

// Split divides text into ordered, non-empty chunks of at most maxLen
// characters (Unicode code points).
//
// Each step takes the longest prefix not exceeding maxLen and cuts it after
// the last '.' inside that prefix. When the prefix has no period it is cut
// exactly at maxLen, possibly mid-word. Chunks are trimmed of surrounding
// whitespace. If maxLen is not positive, DefaultMaxChunkLength is used.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	rest := []rune(strings.TrimSpace(text))
	var chunks []string

	for len(rest) > maxLen {
		cut := lastPeriod(rest[:maxLen]) + 1
		if cut == 0 {
			cut = maxLen
		}

		if chunk := strings.TrimSpace(string(rest[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}

	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}

	return chunks
}

// lastPeriod returns the index of the last '.' in r, or -1.
func lastPeriod(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '.' {
			return i
		}
	}
	return -1
}
