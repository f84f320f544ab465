package model

import "time"

// Sentiment is a per-item or aggregate news label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsItem is a news article or exchange announcement.
// Sentiment is empty until classified.
type NewsItem struct {
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   Sentiment `json:"sentiment,omitempty"`
	Score       float64   `json:"score"`
}

// SentimentSummary aggregates classified items.
type SentimentSummary struct {
	Positive int       `json:"positive"`
	Negative int       `json:"negative"`
	Neutral  int       `json:"neutral"`
	Skipped  int       `json:"skipped"` // subset of Neutral that could not be classified
	Overall  Sentiment `json:"overall"`
}

// Total returns the number of items summarized.
func (s SentimentSummary) Total() int { return s.Positive + s.Negative + s.Neutral }
