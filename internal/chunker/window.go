package chunker

import "strings"

// SplitWindows breaks section text into windows of roughly targetTokens,
// cutting only at paragraph boundaries. Each window after the first starts
// with trailing paragraphs of the previous one totalling at least
// overlapTokens. A paragraph larger than the target is kept whole.
func SplitWindows(text string, targetTokens, overlapTokens int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if EstimateTokens(text) <= targetTokens {
		return []string{trimmed}
	}

	var (
		windows []string
		current []string
		tally   int
	)

	for _, para := range splitParagraphs(text) {
		pt := EstimateTokens(para)
		if tally+pt > targetTokens && len(current) > 0 {
			if w := joinParagraphs(current); w != "" {
				windows = append(windows, w)
			}
			current = overlapTail(current, overlapTokens)
			tally = 0
			for _, p := range current {
				tally += EstimateTokens(p)
			}
		}
		current = append(current, para)
		tally += pt
	}

	if len(current) > 0 {
		if w := joinParagraphs(current); w != "" {
			windows = append(windows, w)
		}
	}
	return windows
}

// splitParagraphs returns maximal runs of non-blank lines.
func splitParagraphs(text string) []string {
	var (
		paras []string
		run   []string
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(run) > 0 {
				paras = append(paras, strings.Join(run, "\n"))
				run = run[:0]
			}
			continue
		}
		run = append(run, line)
	}
	if len(run) > 0 {
		paras = append(paras, strings.Join(run, "\n"))
	}
	return paras
}

// overlapTail walks paras from the end and returns the shortest non-empty
// suffix whose token count reaches overlapTokens, in original order. The last
// paragraph is always carried, even with a zero overlap. The result never
// aliases paras.
func overlapTail(paras []string, overlapTokens int) []string {
	start := len(paras)
	sum := 0
	for start > 0 {
		start--
		sum += EstimateTokens(paras[start])
		if sum >= overlapTokens {
			break
		}
	}
	tail := make([]string, len(paras)-start)
	copy(tail, paras[start:])
	return tail
}

func joinParagraphs(paras []string) string {
	return strings.TrimSpace(strings.Join(paras, "\n\n"))
}
