package podcast

import "math/rand"

// EpisodeCandidate is one episode in the recommendation pool.
type EpisodeCandidate struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	ReleaseDate     string   `json:"release_date"`
	URL             string   `json:"url"`
	Explicit        bool     `json:"explicit"`
	ShowID          string   `json:"show_id"`
	ShowName        string   `json:"show_name"`
	Publisher       string   `json:"publisher"`
	Genres          []string `json:"genres"`
}

// SampleEpisodes returns all episodes when the pool fits the cap, otherwise
// a uniform random sample of exactly maxCandidates without replacement. No
// recency weighting.
func SampleEpisodes(rng *rand.Rand, episodes []EpisodeCandidate, maxCandidates int) []EpisodeCandidate {
	if maxCandidates <= 0 || len(episodes) <= maxCandidates {
		return episodes
	}

	picked := rng.Perm(len(episodes))[:maxCandidates]
	sample := make([]EpisodeCandidate, 0, maxCandidates)
	for _, idx := range picked {
		sample = append(sample, episodes[idx])
	}
	return sample
}
