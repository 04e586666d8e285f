package chunking

import "strings"

// window is one fixed-token slice of a source text, with token offsets
// relative to the reconstructed (sentence-joined) source.
type window struct {
	Text       string
	StartToken int
	EndToken   int
}

// windowize groups sentences into windows of roughly windowSize tokens,
// stepping back by overlap tokens of trailing sentences between windows
// so adjacent windows share context for the boundary-distance computation
// in step 4 of spec.md §4.4's algorithm.
func windowize(sentences []string, windowSize, overlap int) []window {
	if len(sentences) == 0 {
		return nil
	}

	type sentenceInfo struct {
		text   string
		tokens int
		start  int
	}
	infos := make([]sentenceInfo, len(sentences))
	offset := 0
	for i, s := range sentences {
		n := tokenCount(s)
		infos[i] = sentenceInfo{text: s, tokens: n, start: offset}
		offset += n
	}
	total := offset

	var windows []window
	i := 0
	for i < len(infos) {
		startTok := infos[i].start
		curTokens := 0
		var parts []string
		j := i
		for j < len(infos) && (curTokens == 0 || curTokens < windowSize) {
			curTokens += infos[j].tokens
			parts = append(parts, infos[j].text)
			j++
		}
		endTok := startTok + curTokens
		if endTok > total {
			endTok = total
		}
		windows = append(windows, window{Text: strings.Join(parts, " "), StartToken: startTok, EndToken: endTok})

		if j >= len(infos) {
			break
		}

		// Step back by ~overlap tokens worth of trailing sentences so the
		// next window starts inside this one.
		k, back := j, 0
		for k > i && back < overlap {
			k--
			back += infos[k].tokens
		}
		if k <= i {
			k = i + 1 // always make forward progress
		}
		i = k
	}
	return windows
}
