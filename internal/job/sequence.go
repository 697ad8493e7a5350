package job

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brogergvhs/lectord/internal/util"
)

// Mode selects how a download request expands into chapters.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeList   Mode = "list"
	ModeNextN  Mode = "nextN"
)

var nextNRe = regexp.MustCompile(`^((?:siguientes|next)\s*[: ]\s*(\d+)|\+(\d+))$`)

// ParseSequenceInput interprets the user's chapter request. Empty means the
// start URL alone; "siguientes: 5", "next 5" or "+5" ask for a forward
// window; anything else is read as a token list. Unparseable input falls
// back to single.
func ParseSequenceInput(seqInput, startURL string) (Mode, []string) {
	s := strings.ToLower(strings.TrimSpace(seqInput))
	if s == "" {
		return ModeSingle, []string{startURL}
	}

	if m := nextNRe.FindStringSubmatch(s); m != nil {
		n := m[2]
		if n == "" {
			n = m[3]
		}
		return ModeNextN, []string{n}
	}

	var tokens []string
	for _, tok := range regexp.MustCompile(`[,\s]+`).Split(s, -1) {
		tok = strings.TrimSpace(tok)
		if util.IsChapterToken(tok) {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) > 0 {
		return ModeList, tokens
	}

	return ModeSingle, []string{startURL}
}

// SortChapterTokens orders tokens numerically, decimals included, dropping
// duplicates. Tokens that fail to parse sink to the end in input order.
func SortChapterTokens(tokens []string) []string {
	unique := util.UniquePreserve(tokens)

	sort.SliceStable(unique, func(i, j int) bool {
		a, aok := tokenValue(unique[i])
		b, bok := tokenValue(unique[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		return a < b
	})

	return unique
}

func tokenValue(token string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)

	return v, err == nil
}

// ForwardWindow picks n tokens starting at startToken, wrapping to the head
// of the sorted list when the tail runs short.
func ForwardWindow(sorted []string, startToken string, n int) []string {
	if n <= 0 || len(sorted) == 0 {
		return nil
	}

	idx := -1
	for i, tok := range sorted {
		if tok == startToken {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(sorted) < n {
			n = len(sorted)
		}
		return append([]string(nil), sorted[:n]...)
	}

	window := append([]string(nil), sorted[idx:]...)
	if len(window) < n {
		window = append(window, sorted[:idx]...)
	}
	window = util.UniquePreserve(window)
	if len(window) > n {
		window = window[:n]
	}

	return window
}
