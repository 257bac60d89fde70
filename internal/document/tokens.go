package document

import (
	"math"
	"strings"
	"unicode"
)

// EstimateTokens 估算文本的token数量
// 估算公式：词数×1.3 + 标点数×0.2 + 其他符号数×0.3，向上取整
// 这是近似值而不是真实tokenizer的结果，下游的token预算因此只是软保证
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	words := len(strings.Fields(text))
	punct := 0
	symbols := 0
	for _, r := range text {
		switch {
		case unicode.IsPunct(r):
			punct++
		case unicode.IsSymbol(r):
			symbols++
		}
	}

	return int(math.Ceil(float64(words)*1.3 + float64(punct)*0.2 + float64(symbols)*0.3))
}

// protectedAbbreviations 不作为句子边界处理的缩写词
// 固定的称谓和拉丁缩写列表
var protectedAbbreviations = map[string]bool{
	"dr.": true, "mr.": true, "mrs.": true, "ms.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "rev.": true, "hon.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "cf.": true,
	"al.": true, "fig.": true, "no.": true, "vol.": true, "pp.": true,
	"inc.": true, "ltd.": true, "co.": true, "corp.": true, "dept.": true,
	"jan.": true, "feb.": true, "mar.": true, "apr.": true, "jun.": true,
	"jul.": true, "aug.": true, "sep.": true, "oct.": true, "nov.": true, "dec.": true,
}

// textSpan 文本中的一个区间，位置相对于所属字符串
type textSpan struct {
	start int
	end   int
}

// splitSentences 把文本分割为句子区间
// 句号/问号/感叹号后跟空白视为句子边界，受保护的缩写词除外
func splitSentences(text string) []textSpan {
	var spans []textSpan
	start := 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}

		// 边界后必须是空白或文本结尾
		if i+1 < len(text) && !isSpaceByte(text[i+1]) {
			continue
		}

		// 句号需要检查前面的词是否为受保护缩写
		if c == '.' && isProtectedAbbreviation(text, i) {
			continue
		}

		spans = append(spans, textSpan{start, i + 1})
		// 跳过边界后的空白
		j := i + 1
		for j < len(text) && isSpaceByte(text[j]) {
			j++
		}
		start = j
		i = j - 1
	}

	if start < len(text) && strings.TrimSpace(text[start:]) != "" {
		spans = append(spans, textSpan{start, len(text)})
	}

	return spans
}

// isProtectedAbbreviation 检查位置pos处的句号是否属于受保护缩写
func isProtectedAbbreviation(text string, pos int) bool {
	// 向前找到词的起始位置
	wordStart := pos
	for wordStart > 0 && !isSpaceByte(text[wordStart-1]) {
		wordStart--
	}
	word := strings.ToLower(text[wordStart : pos+1])
	return protectedAbbreviations[word]
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
