// Package history aggregates a user's TMDB account data (favorites, ratings,
// watchlist) into weighted preference profiles per content type.
package history

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/tmdb"
)

// Analysis depth levels. Higher depths append extra derived blocks; the base
// block is never altered, so lower depths are a strict structural prefix.
const (
	DepthBasic         = "basic"
	DepthDetailed      = "detailed"
	DepthComprehensive = "comprehensive"
)

// RatingPatterns summarizes the user's explicit ratings. All pointer fields
// are nil when the user rated nothing.
type RatingPatterns struct {
	AverageRatingGiven *float64 `json:"average_rating_given"`
	TotalRatings       int      `json:"total_ratings"`
	MinimumThreshold   *float64 `json:"minimum_threshold"`
	MaximumRating      *float64 `json:"maximum_rating"`
}

// DataBreakdown reports how many items each source list contributed
// (before dedup).
type DataBreakdown struct {
	Favorites int `json:"favorites"`
	Rated     int `json:"rated"`
	Watchlist int `json:"watchlist"`
}

// PopularityPreferences is the detailed-depth popularity block.
type PopularityPreferences struct {
	AveragePopularity *float64 `json:"average_popularity"`
	PrefersMainstream *float64 `json:"prefers_mainstream"`
}

// QualityPreferences is the detailed-depth vote-average block.
type QualityPreferences struct {
	AverageVotePreference *float64 `json:"average_vote_preference"`
	HighQualityRatio      *float64 `json:"high_quality_ratio"`
}

// ContentMaturity is the comprehensive-depth block (movies only).
type ContentMaturity struct {
	AdultContentRatio        float64 `json:"adult_content_ratio"`
	FamilyFriendlyPreference float64 `json:"family_friendly_preference"`
}

// ContentProfile is the preference profile for one content type.
type ContentProfile struct {
	FavoriteGenres      map[string]float64 `json:"favorite_genres"`
	RatingPatterns      RatingPatterns     `json:"rating_patterns"`
	DecadePreferences   map[string]int     `json:"decade_preferences"`
	LanguagePreferences map[string]int     `json:"language_preferences"`
	TotalAnalyzed       int                `json:"total_analyzed"`
	DataBreakdown       DataBreakdown      `json:"data_breakdown"`

	Popularity *PopularityPreferences `json:"popularity_preferences,omitempty"`
	Quality    *QualityPreferences    `json:"quality_preferences,omitempty"`
	Maturity   *ContentMaturity       `json:"content_maturity,omitempty"`

	Error string `json:"error,omitempty"`
}

// AccountSummary identifies the analyzed account.
type AccountSummary struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	IncludeAdult bool   `json:"include_adult"`
}

// OverallInsights summarizes across content types.
type OverallInsights struct {
	AnalysisTimestamp  string   `json:"analysis_timestamp"`
	PrimaryContentType string   `json:"primary_content_type"`
	QualityThreshold   *float64 `json:"quality_threshold"`
}

// Document is the history analyzer output.
type Document struct {
	UserID               string           `json:"user_id"`
	AccountDetails       *AccountSummary  `json:"account_details,omitempty"`
	AnalysisDepth        string           `json:"analysis_depth"`
	ContentTypesAnalyzed []string         `json:"content_types_analyzed"`
	MoviePreferences     *ContentProfile  `json:"movie_preferences,omitempty"`
	TVPreferences        *ContentProfile  `json:"tv_preferences,omitempty"`
	OverallInsights      *OverallInsights `json:"overall_insights,omitempty"`
	ConfidenceScore      float64          `json:"confidence_score"`
	Error                string           `json:"error,omitempty"`
}

// Client is the slice of the TMDB client the analyzer needs.
type Client interface {
	IsConfigured() bool
	AccountDetails(ctx context.Context, sessionID string) (*tmdb.Account, error)
	AccountList(ctx context.Context, accountID int64, list, contentType, sessionID string) ([]tmdb.ListingItem, error)
}

// Analyzer aggregates TMDB account history into preference profiles.
type Analyzer struct {
	client       Client
	genres       *tmdb.GenreCache
	sessionToken string
	log          *zap.Logger
	now          func() time.Time
}

// NewAnalyzer creates a history analyzer. sessionToken may be empty; Analyze
// then degrades to an error document.
func NewAnalyzer(client Client, genres *tmdb.GenreCache, sessionToken string, log *zap.Logger) *Analyzer {
	return &Analyzer{
		client:       client,
		genres:       genres,
		sessionToken: sessionToken,
		log:          log,
		now:          time.Now,
	}
}

// Analyze builds the preference document for userID at the given depth.
func (a *Analyzer) Analyze(ctx context.Context, userID, depth string) *Document {
	depth = normalizeDepth(depth)
	doc := &Document{
		UserID:               userID,
		AnalysisDepth:        depth,
		ContentTypesAnalyzed: []string{tmdb.TypeMovie, tmdb.TypeTV},
	}

	if !a.client.IsConfigured() {
		doc.Error = "TMDB API key not set"
		return doc
	}
	if a.sessionToken == "" {
		doc.Error = "TMDB session token not set; user history requires authenticated access"
		return doc
	}

	account, err := a.client.AccountDetails(ctx, a.sessionToken)
	if err != nil {
		a.log.Warn("account details fetch failed", zap.Error(err))
		doc.Error = "failed to retrieve account details; check session token validity"
		return doc
	}
	doc.AccountDetails = &AccountSummary{
		ID:           account.ID,
		Username:     account.Username,
		Name:         account.Name,
		IncludeAdult: account.IncludeAdult,
	}
	if doc.AccountDetails.Username == "" {
		doc.AccountDetails.Username = userID
	}

	doc.MoviePreferences = a.analyzeContentType(ctx, account.ID, tmdb.TypeMovie, depth)
	doc.TVPreferences = a.analyzeContentType(ctx, account.ID, tmdb.TypeTV, depth)
	doc.OverallInsights = a.overallInsights(doc)
	doc.ConfidenceScore = confidenceScore(doc.MoviePreferences, doc.TVPreferences)
	return doc
}

func (a *Analyzer) analyzeContentType(ctx context.Context, accountID int64, contentType, depth string) *ContentProfile {
	favorites := a.fetchList(ctx, accountID, tmdb.ListFavorite, contentType)
	rated := a.fetchList(ctx, accountID, tmdb.ListRated, contentType)
	watchlist := a.fetchList(ctx, accountID, tmdb.ListWatchlist, contentType)

	if len(favorites)+len(rated)+len(watchlist) == 0 {
		return &ContentProfile{
			FavoriteGenres:      map[string]float64{},
			DecadePreferences:   map[string]int{},
			LanguagePreferences: map[string]int{},
			Error:               fmt.Sprintf("no %s data available", contentType),
		}
	}

	return a.aggregate(ctx, favorites, rated, watchlist, contentType, depth)
}

func (a *Analyzer) fetchList(ctx context.Context, accountID int64, list, contentType string) []tmdb.ListingItem {
	items, err := a.client.AccountList(ctx, accountID, list, contentType, a.sessionToken)
	if err != nil {
		a.log.Warn("account list fetch failed",
			zap.String("list", list), zap.String("content_type", contentType), zap.Error(err))
		return nil
	}
	return items
}

// aggregate unions the source lists (dedup by TMDB id, first occurrence
// wins) and derives the weighted profile.
func (a *Analyzer) aggregate(ctx context.Context, favorites, rated, watchlist []tmdb.ListingItem, contentType, depth string) *ContentProfile {
	seen := make(map[int64]struct{})
	var all []tmdb.ListingItem
	for _, bucket := range [][]tmdb.ListingItem{favorites, rated, watchlist} {
		for _, item := range bucket {
			if item.ID == 0 {
				continue
			}
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			all = append(all, item)
		}
	}

	profile := &ContentProfile{
		FavoriteGenres:      map[string]float64{},
		DecadePreferences:   map[string]int{},
		LanguagePreferences: map[string]int{},
		TotalAnalyzed:       len(all),
		DataBreakdown: DataBreakdown{
			Favorites: len(favorites),
			Rated:     len(rated),
			Watchlist: len(watchlist),
		},
	}

	genreCounts := map[string]int{}
	var ratings []float64
	for _, item := range all {
		for _, gid := range item.GenreIDs {
			genreCounts[a.genres.Name(ctx, contentType, gid)]++
		}
		if item.Rating != nil {
			ratings = append(ratings, *item.Rating)
		}
		if decade, ok := decadeOf(item.ReleaseOrAirDate()); ok {
			profile.DecadePreferences[decade]++
		}
		if item.OriginalLanguage != "" {
			profile.LanguagePreferences[item.OriginalLanguage]++
		}
	}

	total := float64(len(all))
	for genre, count := range genreCounts {
		profile.FavoriteGenres[genre] = round2(float64(count) / total)
	}

	profile.RatingPatterns = ratingPatterns(ratings)

	if depth == DepthDetailed || depth == DepthComprehensive {
		profile.Popularity, profile.Quality = detailedBlocks(all)
	}
	if depth == DepthComprehensive && contentType == tmdb.TypeMovie {
		profile.Maturity = maturityBlock(all)
	}

	return profile
}

func ratingPatterns(ratings []float64) RatingPatterns {
	p := RatingPatterns{TotalRatings: len(ratings)}
	if len(ratings) == 0 {
		return p
	}
	sum, min, max := 0.0, ratings[0], ratings[0]
	for _, r := range ratings {
		sum += r
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	avg := round1(sum / float64(len(ratings)))
	p.AverageRatingGiven = &avg
	p.MinimumThreshold = &min
	p.MaximumRating = &max
	return p
}

func detailedBlocks(items []tmdb.ListingItem) (*PopularityPreferences, *QualityPreferences) {
	var popScores, votes []float64
	for _, item := range items {
		if item.Popularity > 0 {
			popScores = append(popScores, item.Popularity)
		}
		if item.VoteAverage > 0 {
			votes = append(votes, item.VoteAverage)
		}
	}

	pop := &PopularityPreferences{}
	if len(popScores) > 0 {
		sum, mainstream := 0.0, 0
		for _, p := range popScores {
			sum += p
			if p > 50 {
				mainstream++
			}
		}
		avg := round1(sum / float64(len(popScores)))
		ratio := float64(mainstream) / float64(len(popScores))
		pop.AveragePopularity = &avg
		pop.PrefersMainstream = &ratio
	}

	qual := &QualityPreferences{}
	if len(votes) > 0 {
		sum, high := 0.0, 0
		for _, v := range votes {
			sum += v
			if v >= 7.0 {
				high++
			}
		}
		avg := round1(sum / float64(len(votes)))
		ratio := float64(high) / float64(len(votes))
		qual.AverageVotePreference = &avg
		qual.HighQualityRatio = &ratio
	}

	return pop, qual
}

func maturityBlock(items []tmdb.ListingItem) *ContentMaturity {
	if len(items) == 0 {
		return &ContentMaturity{FamilyFriendlyPreference: 1}
	}
	adult := 0
	for _, item := range items {
		if item.Adult {
			adult++
		}
	}
	total := float64(len(items))
	return &ContentMaturity{
		AdultContentRatio:        round2(float64(adult) / total),
		FamilyFriendlyPreference: round2(float64(len(items)-adult) / total),
	}
}

func (a *Analyzer) overallInsights(doc *Document) *OverallInsights {
	insights := &OverallInsights{
		AnalysisTimestamp: a.now().Format(time.RFC3339),
	}

	movieCount, tvCount := 0, 0
	if doc.MoviePreferences != nil {
		movieCount = doc.MoviePreferences.TotalAnalyzed
	}
	if doc.TVPreferences != nil {
		tvCount = doc.TVPreferences.TotalAnalyzed
	}

	switch {
	case movieCount == 0 && tvCount == 0:
		insights.PrimaryContentType = "unknown"
	case float64(movieCount) > float64(tvCount)*1.5:
		insights.PrimaryContentType = "movies"
	case float64(tvCount) > float64(movieCount)*1.5:
		insights.PrimaryContentType = "tv_shows"
	default:
		insights.PrimaryContentType = "balanced"
	}

	var avgs []float64
	for _, p := range []*ContentProfile{doc.MoviePreferences, doc.TVPreferences} {
		if p != nil && p.RatingPatterns.AverageRatingGiven != nil {
			avgs = append(avgs, *p.RatingPatterns.AverageRatingGiven)
		}
	}
	if len(avgs) > 0 {
		sum := 0.0
		for _, v := range avgs {
			sum += v
		}
		threshold := round1(sum / float64(len(avgs)))
		insights.QualityThreshold = &threshold
	}

	return insights
}

// confidenceScore estimates trust in the profiles from data volume, with a
// small bonus when explicit ratings exist. Always in [0, 1]; zero items
// yields exactly 0.
func confidenceScore(movie, tv *ContentProfile) float64 {
	count := func(p *ContentProfile) int {
		if p == nil {
			return 0
		}
		return p.TotalAnalyzed
	}
	ratings := func(p *ContentProfile) int {
		if p == nil {
			return 0
		}
		return p.RatingPatterns.TotalRatings
	}

	total := count(movie) + count(tv)
	var confidence float64
	switch {
	case total == 0:
		return 0.0
	case total < 5:
		confidence = 0.3
	case total < 15:
		confidence = 0.6
	case total < 50:
		confidence = 0.8
	default:
		confidence = 0.95
	}

	if ratings(movie)+ratings(tv) > 0 {
		confidence = math.Min(1.0, confidence+0.1)
	}
	return round2(confidence)
}

// decadeOf buckets a YYYY-MM-DD (or bare year) date string into a decade
// label. Unparsable dates are skipped silently by the caller.
func decadeOf(date string) (string, bool) {
	if len(date) < 4 {
		return "", false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%ds", (year/10)*10), true
}

func normalizeDepth(depth string) string {
	switch depth {
	case DepthBasic, DepthDetailed, DepthComprehensive:
		return depth
	}
	return DepthComprehensive
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
