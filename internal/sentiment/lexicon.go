// Package sentiment scores news text against a weighted keyword lexicon.
package sentiment

import (
	"sort"
	"strings"
)

// Lexicon maps keywords to weights. Positive keywords carry positive weight,
// negative keywords negative weight. Matching is case-insensitive. Keywords
// made of ASCII letters and digits only match whole words; any other keyword
// (Chinese in practice) matches as a substring.
type Lexicon map[string]float64

// DefaultLexicon returns the built-in Chinese and English keyword set.
func DefaultLexicon() Lexicon {
	l := Lexicon{}
	l.add(2, "利好", "涨停", "业绩大增")
	l.add(1.5, "大涨", "增持", "预增", "创新高", "超预期", "surge")
	l.add(1, "上涨", "增长", "回购", "分红", "盈利", "突破", "中标", "upgrade", "beat", "record", "growth", "buyback")
	l.add(0.5, "签约")

	l.add(-2, "利空", "跌停", "立案", "退市", "fraud")
	l.add(-1.5, "大跌", "亏损", "减持", "预亏", "违规", "处罚", "plunge")
	l.add(-1, "下跌", "下滑", "预减", "诉讼", "风险提示", "downgrade", "miss", "loss", "lawsuit")
	return l
}

func (l Lexicon) add(weight float64, keywords ...string) {
	for _, kw := range keywords {
		l[strings.ToLower(kw)] = weight
	}
}

// Merge returns a copy of l with overrides applied on top.
func (l Lexicon) Merge(overrides Lexicon) Lexicon {
	out := make(Lexicon, len(l)+len(overrides))
	for k, v := range l {
		out[strings.ToLower(k)] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}

type term struct {
	keyword string
	weight  float64
	word    bool
}

// matcher is a Lexicon frozen into a fixed order so scores are reproducible.
type matcher []term

func (l Lexicon) compile() matcher {
	m := make(matcher, 0, len(l))
	for k, v := range l {
		if k == "" || v == 0 {
			continue
		}
		m = append(m, term{keyword: k, weight: v, word: isASCIIWord(k)})
	}
	sort.Slice(m, func(i, j int) bool { return m[i].keyword < m[j].keyword })
	return m
}

func (m matcher) score(text string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0.0
	for _, t := range m {
		var n int
		if t.word {
			n = countWords(lower, t.keyword)
		} else {
			n = strings.Count(lower, t.keyword)
		}
		if n > 0 {
			score += float64(n) * t.weight
		}
	}
	return score
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// countWords counts occurrences of kw in text not adjacent to another ASCII
// letter or digit, so "miss" does not fire inside "commission".
func countWords(text, kw string) int {
	n := 0
	for i := 0; ; {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return n
		}
		start, end := i+j, i+j+len(kw)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			n++
		}
		i = start + 1
	}
}
