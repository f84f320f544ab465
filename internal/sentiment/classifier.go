package sentiment

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"AShareSentinel/internal/model"
)

// Config tunes scoring.
type Config struct {
	TitleWeight float64
	Threshold   float64
	MinRunes    int
	Lexicon     Lexicon // merged over DefaultLexicon
}

// DefaultConfig returns the built-in scoring settings.
func DefaultConfig() Config {
	return Config{TitleWeight: 2, Threshold: 1, MinRunes: 4}
}

// Classifier labels news items. It is immutable and safe for concurrent use.
type Classifier struct {
	cfg     Config
	matcher matcher
	log     zerolog.Logger
}

// New builds a Classifier from cfg.
func New(cfg Config, log zerolog.Logger) *Classifier {
	if cfg.TitleWeight <= 0 {
		cfg.TitleWeight = 1
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	return &Classifier{
		cfg:     cfg,
		matcher: DefaultLexicon().Merge(cfg.Lexicon).compile(),
		log:     log.With().Str("component", "sentiment").Logger(),
	}
}

// Score returns the weighted keyword score of one item.
func (c *Classifier) Score(item model.NewsItem) (float64, error) {
	if !utf8.ValidString(item.Title) || !utf8.ValidString(item.Body) {
		return 0, &model.ClassificationSkippedError{Reason: "invalid UTF-8"}
	}
	if meaningfulRunes(item.Title)+meaningfulRunes(item.Body) < c.cfg.MinRunes {
		return 0, nil
	}
	return c.matcher.score(item.Title)*c.cfg.TitleWeight + c.matcher.score(item.Body), nil
}

// Label maps a score onto a sentiment.
func (c *Classifier) Label(score float64) model.Sentiment {
	switch {
	case score >= c.cfg.Threshold:
		return model.SentimentPositive
	case score <= -c.cfg.Threshold:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// Classify labels every item and summarizes the batch. The input is not
// modified. Items that cannot be scored degrade to neutral and are counted
// as skipped; the batch itself never fails.
func (c *Classifier) Classify(items []model.NewsItem) ([]model.NewsItem, model.SentimentSummary) {
	out := make([]model.NewsItem, len(items))
	var sum model.SentimentSummary
	for i, item := range items {
		score, err := c.safeScore(i, item)
		if err != nil {
			c.log.Warn().Err(err).Str("title", item.Title).Msg("news item skipped")
			sum.Skipped++
			score = 0
		}
		item.Score = score
		item.Sentiment = c.Label(score)
		out[i] = item

		switch item.Sentiment {
		case model.SentimentPositive:
			sum.Positive++
		case model.SentimentNegative:
			sum.Negative++
		default:
			sum.Neutral++
		}
	}
	sum.Overall = Overall(sum.Positive, sum.Negative)
	return out, sum
}

func (c *Classifier) safeScore(i int, item model.NewsItem) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.ClassificationSkippedError{Index: i, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	score, err = c.Score(item)
	var skipped *model.ClassificationSkippedError
	if errors.As(err, &skipped) {
		skipped.Index = i
	}
	return score, err
}

// Overall is positive when positives outnumber negatives, negative when the
// reverse holds, and neutral on a tie (including an empty batch).
func Overall(positive, negative int) model.Sentiment {
	switch {
	case positive > negative:
		return model.SentimentPositive
	case negative > positive:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func meaningfulRunes(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			n++
		}
	}
	return n
}
