// Package feedback analyzes emoji reactions on previously delivered Discord
// messages and turns them into satisfaction and engagement signals.
package feedback

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/discord"
)

// Reaction emoji roles.
const (
	EmojiLiked     = "👍"
	EmojiDisliked  = "👎"
	EmojiConsumed  = "✅"
	EmojiRejected  = "❌"
	EmojiPerfect   = "⭐"
	EmojiBadTiming = "🕐"
)

// DefaultEmojis is the tracked reaction set, in seeding order.
var DefaultEmojis = []string{EmojiLiked, EmojiDisliked, EmojiConsumed, EmojiRejected, EmojiPerfect, EmojiBadTiming}

// MessageFeedback is the per-message reaction record. Only messages with at
// least one tracked human reaction are retained.
type MessageFeedback struct {
	MessageID      string         `json:"message_id"`
	MessageContent string         `json:"message_content"`
	Timestamp      string         `json:"timestamp"`
	Reactions      map[string]int `json:"reactions"`
}

// CollectionSummary describes the collection pass.
type CollectionSummary struct {
	DaysAnalyzed            int `json:"days_analyzed"`
	BotMessagesFound        int `json:"bot_messages_found"`
	MessagesWithReactions   int `json:"messages_with_reactions"`
	TotalReactionsCollected int `json:"total_reactions_collected"`
}

// ContentPreferences breaks reaction totals down by role.
type ContentPreferences struct {
	LikedContent     int `json:"liked_content"`
	DislikedContent  int `json:"disliked_content"`
	PerfectMatches   int `json:"perfect_matches"`
	ActuallyConsumed int `json:"actually_consumed"`
	NotInterested    int `json:"not_interested"`
}

// TimingFeedback reports timing complaints.
type TimingFeedback struct {
	TimingIssues    int     `json:"timing_issues"`
	TimingIssueRate float64 `json:"timing_issue_rate"`
}

// Patterns is the derived analytics block.
type Patterns struct {
	OverallSatisfaction string              `json:"overall_satisfaction"`
	SatisfactionScore   *float64            `json:"satisfaction_score,omitempty"`
	EngagementLevel     string              `json:"engagement_level"`
	ConsumptionRate     *float64            `json:"consumption_rate,omitempty"`
	ContentPreferences  *ContentPreferences `json:"content_preferences,omitempty"`
	TimingFeedback      *TimingFeedback     `json:"timing_feedback,omitempty"`
	TotalFeedbackPoints int                 `json:"total_feedback_points"`
	MessagesWithFeedback int                `json:"messages_with_feedback"`
	Recommendations     []string            `json:"recommendations"`
}

// Document is the feedback analyzer output.
type Document struct {
	Summary          CollectionSummary `json:"feedback_collection_summary"`
	DetailedFeedback []MessageFeedback `json:"detailed_feedback"`
	Patterns         Patterns          `json:"feedback_patterns"`
	Error            string            `json:"error,omitempty"`
}

// Client is the slice of the Discord client the analyzer needs.
type Client interface {
	IsConfigured() bool
	BotUser(ctx context.Context) (string, error)
	Messages(ctx context.Context, limit int) ([]discord.Message, error)
}

// Analyzer collects and analyzes reaction feedback on the bot's own
// messages.
type Analyzer struct {
	client Client
	emojis []string
	log    *zap.Logger
	now    func() time.Time
}

// NewAnalyzer creates a feedback analyzer. An empty emoji list falls back to
// the default set.
func NewAnalyzer(client Client, emojis []string, log *zap.Logger) *Analyzer {
	if len(emojis) == 0 {
		emojis = DefaultEmojis
	}
	return &Analyzer{
		client: client,
		emojis: emojis,
		log:    log,
		now:    time.Now,
	}
}

// Analyze collects reactions on the bot's messages from the last daysBack
// days. Credential and upstream failures degrade the document.
func (a *Analyzer) Analyze(ctx context.Context, daysBack int) *Document {
	doc := &Document{
		Summary:          CollectionSummary{DaysAnalyzed: daysBack},
		DetailedFeedback: []MessageFeedback{},
		Patterns:         noFeedbackPatterns(),
	}

	if !a.client.IsConfigured() {
		doc.Error = "discord bot token or channel id not set"
		return doc
	}

	botID, err := a.client.BotUser(ctx)
	if err != nil {
		a.log.Warn("bot user lookup failed", zap.Error(err))
		doc.Error = "failed to retrieve bot user id"
		return doc
	}

	messages, err := a.client.Messages(ctx, 100)
	if err != nil {
		a.log.Warn("channel message fetch failed", zap.Error(err))
		doc.Error = "failed to retrieve channel messages"
		return doc
	}

	cutoff := a.now().AddDate(0, 0, -daysBack)
	var botMessages []discord.Message
	for _, msg := range messages {
		if msg.Author.ID != botID {
			continue
		}
		if msg.Timestamp.Before(cutoff) {
			continue
		}
		botMessages = append(botMessages, msg)
	}
	doc.Summary.BotMessagesFound = len(botMessages)

	for _, msg := range botMessages {
		reactions := a.extractReactions(msg)
		if sum(reactions) == 0 {
			continue
		}
		doc.DetailedFeedback = append(doc.DetailedFeedback, MessageFeedback{
			MessageID:      msg.ID,
			MessageContent: msg.Content,
			Timestamp:      msg.Timestamp.Format(time.RFC3339),
			Reactions:      reactions,
		})
	}

	doc.Summary.MessagesWithReactions = len(doc.DetailedFeedback)
	for _, mf := range doc.DetailedFeedback {
		doc.Summary.TotalReactionsCollected += sum(mf.Reactions)
	}

	doc.Patterns = a.analyzePatterns(doc.DetailedFeedback)
	return doc
}

// extractReactions counts tracked human reactions on a message. The bot's
// own seeded reaction is subtracted, floored at zero.
func (a *Analyzer) extractReactions(msg discord.Message) map[string]int {
	reactions := make(map[string]int, len(a.emojis))
	for _, emoji := range a.emojis {
		reactions[emoji] = 0
	}

	for _, r := range msg.Reactions {
		if _, tracked := reactions[r.Emoji.Name]; !tracked {
			continue
		}
		count := r.Count
		if r.Me {
			count--
		}
		if count < 0 {
			count = 0
		}
		reactions[r.Emoji.Name] = count
	}
	return reactions
}

func (a *Analyzer) analyzePatterns(feedback []MessageFeedback) Patterns {
	totals := map[string]int{}
	for _, emoji := range DefaultEmojis {
		totals[emoji] = 0
	}
	messagesWithFeedback := 0
	for _, mf := range feedback {
		if sum(mf.Reactions) > 0 {
			messagesWithFeedback++
		}
		for emoji, count := range mf.Reactions {
			if _, ok := totals[emoji]; ok {
				totals[emoji] += count
			}
		}
	}

	totalFeedback := sum(totals)
	if totalFeedback == 0 {
		return noFeedbackPatterns()
	}

	positive := totals[EmojiLiked] + totals[EmojiConsumed] + totals[EmojiPerfect]
	negative := totals[EmojiDisliked] + totals[EmojiRejected]
	satisfaction := 0.5
	if positive+negative > 0 {
		satisfaction = float64(positive) / float64(positive+negative)
	}

	consumption := float64(totals[EmojiConsumed]) / float64(totalFeedback)
	timing := float64(totals[EmojiBadTiming]) / float64(totalFeedback)

	satisfactionRounded := round2(satisfaction)
	consumptionRounded := round2(consumption)

	return Patterns{
		OverallSatisfaction: categorizeSatisfaction(satisfaction),
		SatisfactionScore:   &satisfactionRounded,
		EngagementLevel:     categorizeEngagement(consumption),
		ConsumptionRate:     &consumptionRounded,
		ContentPreferences: &ContentPreferences{
			LikedContent:     totals[EmojiLiked],
			DislikedContent:  totals[EmojiDisliked],
			PerfectMatches:   totals[EmojiPerfect],
			ActuallyConsumed: totals[EmojiConsumed],
			NotInterested:    totals[EmojiRejected],
		},
		TimingFeedback: &TimingFeedback{
			TimingIssues:    totals[EmojiBadTiming],
			TimingIssueRate: round2(timing),
		},
		TotalFeedbackPoints:  totalFeedback,
		MessagesWithFeedback: messagesWithFeedback,
		Recommendations:      recommendations(satisfaction, consumption, timing),
	}
}

func noFeedbackPatterns() Patterns {
	return Patterns{
		OverallSatisfaction: "no_feedback",
		EngagementLevel:     "no_engagement",
		Recommendations:     []string{"No feedback collected yet. Encourage users to react to recommendations."},
	}
}

// Bucket boundaries are closed from above: exactly 0.8 is high, exactly 0.6
// is moderate.
func categorizeSatisfaction(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "moderate"
	case score >= 0.4:
		return "low"
	default:
		return "very_low"
	}
}

func categorizeEngagement(rate float64) string {
	switch {
	case rate >= 0.7:
		return "high"
	case rate >= 0.4:
		return "moderate"
	default:
		return "low"
	}
}

// recommendations emits advice in fixed priority order so output is stable
// for identical inputs.
func recommendations(satisfaction, consumption, timing float64) []string {
	var recs []string
	if satisfaction < 0.6 {
		recs = append(recs, "Consider adjusting genre preferences, current content may not match user tastes")
	}
	if consumption < 0.4 {
		recs = append(recs, "Users are interested but not consuming content, check time slot accuracy and content accessibility")
	}
	if timing > 0.2 {
		recs = append(recs, "Significant timing feedback detected, review time slot assignments and content duration matching")
	}
	if satisfaction >= 0.8 && consumption >= 0.6 {
		recs = append(recs, "Great feedback patterns! Current recommendation strategy is working well")
	}
	if len(recs) == 0 {
		recs = append(recs, "Feedback patterns are moderate, continue monitoring and fine-tuning recommendations")
	}
	return recs
}

func sum(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
