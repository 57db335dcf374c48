// Package pipeline orchestrates one recommendation run: five analyzers,
// synthesis, composition, and delivery, with every document archived.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/calendar"
	"github.com/couchpilot/couchpilot/internal/catalog"
	"github.com/couchpilot/couchpilot/internal/compose"
	"github.com/couchpilot/couchpilot/internal/config"
	"github.com/couchpilot/couchpilot/internal/database"
	"github.com/couchpilot/couchpilot/internal/discord"
	"github.com/couchpilot/couchpilot/internal/feedback"
	"github.com/couchpilot/couchpilot/internal/history"
	"github.com/couchpilot/couchpilot/internal/llm"
	"github.com/couchpilot/couchpilot/internal/podcast"
	"github.com/couchpilot/couchpilot/internal/synthesize"
	"github.com/couchpilot/couchpilot/internal/tmdb"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID string
	Steps []StepResult
}

// Options tunes a single run.
type Options struct {
	// NoDeliver stops the pipeline after composition.
	NoDeliver bool
	// Depth overrides the configured analysis depth for history and
	// podcasts when non-empty.
	Depth string
}

// Pipeline orchestrates the 8-step recommendation pipeline. Analyzer
// failures degrade their documents rather than aborting the run; only
// archive writes can fail a step.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	discord  *discord.Client
	log      *zap.Logger
	now      func() time.Time
}

// New creates a pipeline from configuration. Secrets are resolved from
// the environment variables the config names.
func New(cfg *config.Config, db *database.DB, log *zap.Logger) *Pipeline {
	synth := cfg.Synthesis
	provider := llm.CreateProvider(
		synth.Provider,
		synth.Model,
		synth.OllamaURL,
		synth.OpenAIModel,
		os.Getenv(synth.APIKeyEnv),
		log,
	)

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		provider: provider,
		discord: discord.NewClient(
			os.Getenv(cfg.Discord.BotTokenEnv),
			os.Getenv(cfg.Discord.ChannelIDEnv),
			log,
		),
		log: log,
		now: time.Now,
	}
}

// Run executes the full pipeline for today and archives every document.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	today := p.now().Format("2006-01-02")
	runID, err := p.db.CreateRun(today)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	r := &Result{RunID: runID}

	historyDepth := p.cfg.History.Depth
	podcastDepth := p.cfg.Podcasts.Depth
	if opts.Depth != "" {
		historyDepth = opts.Depth
		podcastDepth = opts.Depth
	}

	busyDoc := p.runBusyPeriods(ctx, r, runID, today)
	catalogDoc := p.runCatalog(ctx, r, runID)
	historyDoc := p.runHistory(ctx, r, runID, historyDepth)
	podcastDoc := p.runPodcasts(ctx, r, runID, podcastDepth)
	feedbackDoc := p.runFeedback(ctx, r, runID)

	synthesisDoc := p.runSynthesize(ctx, r, runID, synthesize.Inputs{
		Busy:     busyDoc,
		Catalog:  catalogDoc,
		History:  historyDoc,
		Podcasts: podcastDoc,
		Feedback: feedbackDoc,
	})

	message := p.runCompose(r, runID, synthesisDoc)

	if opts.NoDeliver {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Deliver",
			Summary: "Skipped (--no-deliver)",
		})
	} else {
		r.Steps = append(r.Steps, p.runDeliver(ctx, runID, message))
	}

	status := database.RunStatusCompleted
	for _, step := range r.Steps {
		if step.Err != nil {
			status = database.RunStatusFailed
			break
		}
	}
	if err := p.db.FinishRun(runID, status); err != nil {
		p.log.Warn("finishing run failed", zap.Error(err))
	}
	return r, nil
}

func (p *Pipeline) runBusyPeriods(ctx context.Context, r *Result, runID, today string) *calendar.Document {
	p.log.Info("step 1/8: busy periods")
	client := calendar.NewClient(os.Getenv(p.cfg.Calendar.APIKeyEnv))
	analyzer := calendar.NewAnalyzer(client, p.log)

	tomorrow := p.now().AddDate(0, 0, 1).Format("2006-01-02")
	doc := analyzer.Analyze(ctx, p.cfg.Calendar.CalendarID, today, tomorrow, p.cfg.Timezone)

	p.archive(r, runID, database.DocBusyPeriods, doc, "Busy periods",
		countSummary(len(doc.BusyPeriods), "busy periods", doc.Error))
	return doc
}

func (p *Pipeline) runCatalog(ctx context.Context, r *Result, runID string) *catalog.Document {
	p.log.Info("step 2/8: catalog candidates")
	client := tmdb.NewClient(os.Getenv(p.cfg.Catalog.APIKeyEnv))
	collector := catalog.NewCollector(client, tmdb.NewGenreCache(client, p.log), p.log)

	doc := collector.Analyze(ctx, p.cfg.Catalog.MaxResults, p.cfg.Catalog.MinRating, p.cfg.Catalog.FetchDetails)

	p.archive(r, runID, database.DocCatalog, doc, "Catalog",
		countSummary(doc.TotalMovies+doc.TotalTVShows, "candidates", doc.Error))
	return doc
}

func (p *Pipeline) runHistory(ctx context.Context, r *Result, runID, depth string) *history.Document {
	p.log.Info("step 3/8: viewing history")
	client := tmdb.NewClient(os.Getenv(p.cfg.Catalog.APIKeyEnv))
	analyzer := history.NewAnalyzer(client, tmdb.NewGenreCache(client, p.log),
		os.Getenv(p.cfg.History.SessionTokenEnv), p.log)

	doc := analyzer.Analyze(ctx, p.cfg.History.UserID, depth)

	analyzed := 0
	if doc.MoviePreferences != nil {
		analyzed += doc.MoviePreferences.TotalAnalyzed
	}
	if doc.TVPreferences != nil {
		analyzed += doc.TVPreferences.TotalAnalyzed
	}
	p.archive(r, runID, database.DocHistory, doc, "History",
		countSummary(analyzed, "titles analyzed", doc.Error))
	return doc
}

func (p *Pipeline) runPodcasts(ctx context.Context, r *Result, runID, depth string) *podcast.Document {
	p.log.Info("step 4/8: podcast preferences")
	tokens := podcast.NewTokenSource(
		os.Getenv(p.cfg.Podcasts.ClientIDEnv),
		os.Getenv(p.cfg.Podcasts.ClientSecretEnv),
		os.Getenv(p.cfg.Podcasts.RefreshTokenEnv),
		p.log,
	)

	var feeds *podcast.FeedFetcher
	if len(p.cfg.Podcasts.ExtraFeeds) > 0 {
		configs := make([]podcast.FeedConfig, 0, len(p.cfg.Podcasts.ExtraFeeds))
		for _, f := range p.cfg.Podcasts.ExtraFeeds {
			configs = append(configs, podcast.FeedConfig{URL: f.URL, Name: f.Name})
		}
		feeds = podcast.NewFeedFetcher(configs, p.log)
	}

	analyzer := podcast.NewAnalyzer(podcast.NewClient(tokens, p.log), feeds, p.log)
	doc := analyzer.Analyze(ctx, depth, p.cfg.Podcasts.EpisodesPerShow, p.cfg.Podcasts.MaxEpisodeCandidates)

	p.archive(r, runID, database.DocPodcasts, doc, "Podcasts",
		countSummary(doc.TotalCandidates, "episode candidates", doc.Error))
	return doc
}

func (p *Pipeline) runFeedback(ctx context.Context, r *Result, runID string) *feedback.Document {
	p.log.Info("step 5/8: reaction feedback")
	analyzer := feedback.NewAnalyzer(p.discord, p.cfg.Discord.ReactionEmojis, p.log)
	doc := analyzer.Analyze(ctx, p.cfg.Discord.DaysBack)

	p.archive(r, runID, database.DocFeedback, doc, "Feedback",
		countSummary(doc.Summary.TotalReactionsCollected, "reactions", doc.Error))
	return doc
}

func (p *Pipeline) runSynthesize(ctx context.Context, r *Result, runID string, in synthesize.Inputs) *synthesize.Document {
	p.log.Info("step 6/8: synthesis")
	synth := synthesize.NewSynthesizer(p.provider, synthesize.Options{
		TopRecommendations: p.cfg.Synthesis.TopRecommendations,
		MinFreeTimeMinutes: p.cfg.Synthesis.MinFreeTimeMinutes,
		DayStartHour:       p.cfg.Synthesis.PlanningDayStartHr,
		DayEndHour:         p.cfg.Synthesis.PlanningDayEndHr,
		MaxTokens:          p.cfg.Synthesis.MaxTokens,
	}, p.log)

	doc := synth.Synthesize(ctx, in)

	p.archive(r, runID, database.DocSynthesis, doc, "Synthesize",
		fmt.Sprintf("%d picks via %s", len(doc.Picks), doc.Method))
	return doc
}

func (p *Pipeline) runCompose(r *Result, runID string, doc *synthesize.Document) string {
	p.log.Info("step 7/8: compose message")
	message := compose.Message(doc)

	step := StepResult{
		Name:    "Compose",
		Summary: fmt.Sprintf("Message composed (%d chars)", len([]rune(message))),
	}
	if err := p.db.SaveRecommendation(runID, message, doc.Method, len(doc.Picks)); err != nil {
		step.Err = err
	}
	r.Steps = append(r.Steps, step)
	return message
}

func (p *Pipeline) runDeliver(ctx context.Context, runID, message string) StepResult {
	p.log.Info("step 8/8: deliver")
	if !p.discord.IsConfigured() {
		return StepResult{
			Name:    "Deliver",
			Summary: "Skipped: Discord bot token or channel id not set",
		}
	}

	messageID, err := p.discord.SendMessage(ctx, message)
	if err != nil {
		return StepResult{Name: "Deliver", Err: err}
	}

	// Reaction seeding is best-effort and never fails delivery.
	p.discord.SeedReactions(ctx, messageID, p.cfg.Discord.ReactionEmojis)

	if err := p.db.SaveDelivery(runID, os.Getenv(p.cfg.Discord.ChannelIDEnv), messageID); err != nil {
		p.log.Warn("archiving delivery failed", zap.Error(err))
	}
	return StepResult{
		Name:    "Deliver",
		Summary: fmt.Sprintf("Delivered message %s", messageID),
	}
}

// archive stores a document and appends its step result. A failed archive
// write marks the step failed; the document itself still flows onward.
func (p *Pipeline) archive(r *Result, runID, kind string, doc any, name, summary string) {
	step := StepResult{Name: name, Summary: summary}
	if err := p.db.SaveDocument(runID, kind, doc); err != nil {
		step.Err = err
	}
	r.Steps = append(r.Steps, step)
}

func countSummary(count int, unit, errMsg string) string {
	if errMsg != "" {
		return "Degraded: " + errMsg
	}
	return fmt.Sprintf("%d %s", count, unit)
}
