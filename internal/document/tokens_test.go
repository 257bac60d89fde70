package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEstimateTokens 测试token估算
func TestEstimateTokens(t *testing.T) {
	t.Run("empty and whitespace", func(t *testing.T) {
		assert.Equal(t, 0, EstimateTokens(""))
		assert.Equal(t, 0, EstimateTokens("   \n\t  "))
	})

	t.Run("plain words", func(t *testing.T) {
		// 4词无标点：ceil(4*1.3) = 6
		assert.Equal(t, 6, EstimateTokens("alpha beta gamma delta"))
	})

	t.Run("punctuation adds weight", func(t *testing.T) {
		plain := EstimateTokens("alpha beta gamma delta")
		punctuated := EstimateTokens("alpha, beta, gamma, delta!")
		assert.Greater(t, punctuated, plain, "标点应增加估算值")
	})

	t.Run("monotonic in length", func(t *testing.T) {
		short := EstimateTokens("one two three")
		long := EstimateTokens(strings.Repeat("one two three ", 20))
		assert.Greater(t, long, short)
	})
}

// TestSplitSentences 测试句子切分
func TestSplitSentences(t *testing.T) {
	extract := func(text string) []string {
		var out []string
		for _, span := range splitSentences(text) {
			out = append(out, text[span.start:span.end])
		}
		return out
	}

	t.Run("basic boundaries", func(t *testing.T) {
		sentences := extract("First sentence. Second one! Third one? Fourth without terminator")
		assert.Equal(t, []string{
			"First sentence.",
			"Second one!",
			"Third one?",
			"Fourth without terminator",
		}, sentences)
	})

	t.Run("protected abbreviations", func(t *testing.T) {
		sentences := extract("Dr. Smith met Mr. Jones. They talked.")
		assert.Equal(t, []string{
			"Dr. Smith met Mr. Jones.",
			"They talked.",
		}, sentences, "称谓缩写后的句号不应作为句子边界")
	})

	t.Run("latin abbreviations", func(t *testing.T) {
		sentences := extract("Use common tools, e.g. hammers. Then stop.")
		assert.Len(t, sentences, 2, "e.g.不应切开句子")
	})

	t.Run("period without following space", func(t *testing.T) {
		sentences := extract("version 1.2.3 is out. done.")
		assert.Len(t, sentences, 2, "数字内的句点不是边界")
	})

	t.Run("spans cover original text", func(t *testing.T) {
		text := "One. Two. Three."
		spans := splitSentences(text)
		for i := 1; i < len(spans); i++ {
			assert.GreaterOrEqual(t, spans[i].start, spans[i-1].end, "句子区间不应交叠")
		}
	})
}
