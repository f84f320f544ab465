package sentiment

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareSentinel/internal/model"
)

func newClassifier() *Classifier {
	return New(DefaultConfig(), zerolog.Nop())
}

func TestClassify_MajorityPositive(t *testing.T) {
	items := []model.NewsItem{
		{Title: "贵州茅台业绩大增 净利润创新高"},
		{Title: "公司宣布回购股份并提高分红"},
		{Title: "机构上调评级 股价大涨"},
		{Title: "大股东计划减持 股价下跌"},
		{Title: "公司召开年度股东大会"},
	}
	out, sum := newClassifier().Classify(items)
	require.Len(t, out, 5)
	assert.Equal(t, 3, sum.Positive)
	assert.Equal(t, 1, sum.Negative)
	assert.Equal(t, 1, sum.Neutral)
	assert.Equal(t, model.SentimentPositive, sum.Overall)
	assert.Equal(t, model.SentimentNeutral, out[4].Sentiment)

	// Input is untouched.
	assert.Empty(t, items[0].Sentiment)
}

func TestClassify_TieIsNeutral(t *testing.T) {
	items := []model.NewsItem{
		{Title: "公司发布利好消息"},
		{Title: "季度盈利超预期"},
		{Title: "公司收到处罚决定书"},
		{Title: "年度亏损扩大"},
	}
	_, sum := newClassifier().Classify(items)
	assert.Equal(t, 2, sum.Positive)
	assert.Equal(t, 2, sum.Negative)
	assert.Equal(t, model.SentimentNeutral, sum.Overall)
}

func TestClassify_EmptyBatch(t *testing.T) {
	out, sum := newClassifier().Classify(nil)
	assert.Empty(t, out)
	assert.Equal(t, 0, sum.Total())
	assert.Equal(t, model.SentimentNeutral, sum.Overall)
}

func TestClassify_InvalidUTF8IsSkippedNeutral(t *testing.T) {
	items := []model.NewsItem{
		{Title: "股价涨停 利好"},
		{Title: "bad \xff\xfe bytes 利好"},
	}
	out, sum := newClassifier().Classify(items)
	assert.Equal(t, model.SentimentNeutral, out[1].Sentiment)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Neutral)
	assert.Equal(t, 1, sum.Positive)
	assert.Equal(t, model.SentimentPositive, sum.Overall)
}

func TestScore_ShortTextIsNeutral(t *testing.T) {
	c := newClassifier()
	score, err := c.Score(model.NewsItem{Title: "利好"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScore_TitleWeighted(t *testing.T) {
	c := newClassifier()
	title, err := c.Score(model.NewsItem{Title: "公司股价上涨明显"})
	require.NoError(t, err)
	body, err := c.Score(model.NewsItem{Title: "公司公告", Body: "公司股价上涨明显"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, title)
	assert.Equal(t, 1.0, body)
}

func TestScore_Deterministic(t *testing.T) {
	c := newClassifier()
	item := model.NewsItem{Title: "Record growth beat estimates despite lawsuit", Body: "利好 利空 增持 减持 回购"}
	first, err := c.Score(item)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := c.Score(item)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_EnglishKeywordsMatchWholeWords(t *testing.T) {
	c := newClassifier()
	for _, title := range []string{
		"SEC commission approves merger mission",
		"Company closes Mississippi plant",
		"Board reviews dismissal",
	} {
		score, err := c.Score(model.NewsItem{Title: title})
		require.NoError(t, err)
		assert.Equalf(t, 0.0, score, "title %q", title)
	}

	score, err := c.Score(model.NewsItem{Title: "Quarterly loss widens, earnings miss"})
	require.NoError(t, err)
	assert.Equal(t, -4.0, score)

	score, err = c.Score(model.NewsItem{Title: "公司一季度loss扩大"})
	require.NoError(t, err)
	assert.Equal(t, -2.0, score)
}

func TestLexiconOverride(t *testing.T) {
	c := New(Config{TitleWeight: 1, Threshold: 1, MinRunes: 1, Lexicon: Lexicon{"重组": 2, "利好": 0}}, zerolog.Nop())
	out, _ := c.Classify([]model.NewsItem{{Title: "资产重组"}, {Title: "重大利好"}})
	assert.Equal(t, model.SentimentPositive, out[0].Sentiment)
	assert.Equal(t, model.SentimentNeutral, out[1].Sentiment)
}

func TestOverall(t *testing.T) {
	assert.Equal(t, model.SentimentPositive, Overall(3, 1))
	assert.Equal(t, model.SentimentNegative, Overall(0, 1))
	assert.Equal(t, model.SentimentNeutral, Overall(2, 2))
	assert.Equal(t, model.SentimentNeutral, Overall(0, 0))
}
