package server

import "strings"

// maxMessageLen is the largest message the transport delivers whole;
// longer replies are split.
const maxMessageLen = 4096

// splitMessage splits a long reply into chunks of at most maxLen
// bytes, keeping Markdown code fences balanced: a chunk that would
// cut a fenced block is closed with "```" and the next chunk reopens
// it. Overlong lines are hard-split.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	// Chunks fill to maxLen-3 so the closing fence appended when a
	// chunk cuts an open code block never pushes one past maxLen.
	budget := maxLen - 3

	var chunks []string
	var chunk string
	fenceOpen := false

	flush := func() {
		out := chunk
		if fenceOpen {
			out += "```"
		}
		chunks = append(chunks, out)
		chunk = ""
		if fenceOpen {
			chunk = "```\n"
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		toggles := strings.Count(line, "```")%2 != 0

		for len(line) > budget {
			room := budget - len(chunk)
			if room <= 0 {
				flush()
				continue
			}
			chunk += line[:room]
			line = line[room:]
			flush()
		}

		if len(chunk)+len(line) > budget && chunk != "" {
			flush()
		}
		chunk += line
		if toggles {
			fenceOpen = !fenceOpen
		}
	}

	if chunk != "" {
		if fenceOpen {
			chunk += "```"
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
