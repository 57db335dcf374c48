package podcast

import "strings"

// genreKeywords maps a podcast genre to the keywords that signal it.
// Ordered so inferred genre lists are deterministic.
var genreKeywords = []struct {
	genre    string
	keywords []string
}{
	{"comedy", []string{"comedy", "humor", "entertainment"}},
	{"news", []string{"news", "politics", "current events", "journalism"}},
	{"business", []string{"business", "entrepreneurship", "finance", "investing"}},
	{"technology", []string{"technology", "tech", "science", "innovation"}},
	{"education", []string{"education", "learning", "academic", "educational"}},
	{"health", []string{"health", "fitness", "wellness", "mental health", "medicine"}},
	{"true_crime", []string{"true crime", "crime", "mystery", "investigation"}},
	{"history", []string{"history", "historical", "culture", "documentary"}},
	{"society", []string{"society", "culture", "philosophy", "religion", "spirituality"}},
	{"arts", []string{"arts", "music", "film", "literature", "creative"}},
	{"sports", []string{"sports", "athletics", "fitness", "recreation"}},
	{"lifestyle", []string{"lifestyle", "personal development", "self-help", "relationships"}},
	{"storytelling", []string{"storytelling", "fiction", "drama", "narrative"}},
	{"interview", []string{"interview", "talk show", "conversation", "discussion"}},
}

// InferGenres matches genres against text by case-insensitive keyword
// substring. Each genre is recorded at most once.
func InferGenres(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var matched []string
	for _, entry := range genreKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				matched = append(matched, entry.genre)
				break
			}
		}
	}
	return matched
}
