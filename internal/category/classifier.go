// Package category assigns internal category codes to events whose source
// carries no reliable taxonomy. The rules are a static, ordered keyword
// table so classification stays deterministic and auditable.
package category

import (
	"strings"

	"example.com/citypulse/internal/models"
)

// displayLabels maps category codes to the labels shown to users.
var displayLabels = map[models.Category]string{
	models.CategoryMusic:      "Live Music",
	models.CategoryFood:       "Food & Drink",
	models.CategorySports:     "Sports",
	models.CategoryArts:       "Arts & Culture",
	models.CategoryNightlife:  "Nightlife",
	models.CategoryFitness:    "Fitness & Wellness",
	models.CategoryComedy:     "Comedy",
	models.CategoryNetworking: "Networking",
	models.CategoryFamily:     "Family",
	models.CategoryOutdoor:    "Outdoors",
	models.CategoryOther:      "Other",
}

// DisplayLabel returns the human-readable label for a category code.
func DisplayLabel(c models.Category) string {
	if label, ok := displayLabels[c]; ok {
		return label
	}
	return displayLabels[models.CategoryOther]
}

type keywordGroup struct {
	category models.Category
	keywords []string
}

// keywordGroups is evaluated top to bottom; the first group with a hit
// wins. Music is deliberately first: a "concert in the park" is a concert,
// not an outdoor event.
var keywordGroups = []keywordGroup{
	{models.CategoryMusic, []string{
		"concert", "live music", "jazz", "band", "dj ", "orchestra", "symphony",
		"singer", "album", "acoustic", "open mic", "karaoke", "rap ", "hip hop",
		"gig", "vinyl",
	}},
	{models.CategoryComedy, []string{
		"comedy", "stand-up", "standup", "improv", "comedian",
	}},
	{models.CategoryFood, []string{
		"food", "dinner", "brunch", "tasting", "wine", "beer", "brewery",
		"cocktail", "restaurant", "cooking", "bbq", "barbecue", "farmers market",
		"culinary", "pizza",
	}},
	{models.CategorySports, []string{
		"game", "match", "tournament", "league", "basketball", "soccer",
		"football", "baseball", "hockey", "tennis", "golf", "race day",
	}},
	{models.CategoryFitness, []string{
		"yoga", "workout", "fitness", "pilates", "bootcamp", "5k", "10k",
		"marathon", "run club", "spin class", "crossfit", "wellness",
	}},
	{models.CategoryArts, []string{
		"art", "gallery", "museum", "exhibit", "theater", "theatre", "opera",
		"ballet", "painting", "poetry", "film", "screening", "crafts",
		"photography",
	}},
	{models.CategoryNightlife, []string{
		"nightclub", "club night", "party", "rave", "lounge", "happy hour",
		"bar crawl", "dance night", "after dark",
	}},
	{models.CategoryNetworking, []string{
		"networking", "meetup", "conference", "summit", "workshop", "seminar",
		"startup", "career", "pitch",
	}},
	{models.CategoryFamily, []string{
		"family", "kids", "children", "toddler", "storytime", "puppet",
		"petting zoo", "all ages",
	}},
	{models.CategoryOutdoor, []string{
		"hike", "hiking", "trail", "outdoor", "camping", "kayak", "festival",
		"park cleanup", "garden", "picnic", "stargazing", "nature",
	}},
}

// providerTaxonomy maps known provider taxonomy labels to internal codes.
// Used as a fallback when no keyword group matches.
var providerTaxonomy = map[string]models.Category{
	"music":            models.CategoryMusic,
	"concerts":         models.CategoryMusic,
	"concert":          models.CategoryMusic,
	"classical":        models.CategoryMusic,
	"food & drink":     models.CategoryFood,
	"food and drink":   models.CategoryFood,
	"food":             models.CategoryFood,
	"sports":           models.CategorySports,
	"sports & fitness": models.CategorySports,
	"athletics":        models.CategorySports,
	"arts & theatre":   models.CategoryArts,
	"arts & theater":   models.CategoryArts,
	"arts":             models.CategoryArts,
	"performing arts":  models.CategoryArts,
	"theater":          models.CategoryArts,
	"film":             models.CategoryArts,
	"nightlife":        models.CategoryNightlife,
	"clubs":            models.CategoryNightlife,
	"health":           models.CategoryFitness,
	"health & wellness": models.CategoryFitness,
	"fitness":          models.CategoryFitness,
	"comedy":           models.CategoryComedy,
	"business":         models.CategoryNetworking,
	"networking":       models.CategoryNetworking,
	"community":        models.CategoryNetworking,
	"family":           models.CategoryFamily,
	"family & education": models.CategoryFamily,
	"kids & family":    models.CategoryFamily,
	"outdoors":         models.CategoryOutdoor,
	"outdoor":          models.CategoryOutdoor,
	"recreation":       models.CategoryOutdoor,
	"festival":         models.CategoryOutdoor,
	"festivals":        models.CategoryOutdoor,
	"miscellaneous":    models.CategoryOther,
	"other":            models.CategoryOther,
}

// FromTaxonomy maps a provider taxonomy label to an internal code,
// reporting whether the label was recognized.
func FromTaxonomy(label string) (models.Category, bool) {
	c, ok := providerTaxonomy[strings.ToLower(strings.TrimSpace(label))]
	return c, ok
}

// Classify derives a category from the event title and venue name,
// falling back to the provider's taxonomy hint and finally to "other".
// Pure function: same input, same output, no state.
func Classify(title, venueName, providerHint string) (models.Category, string) {
	blob := strings.ToLower(title + " " + venueName)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(blob, kw) {
				return group.category, DisplayLabel(group.category)
			}
		}
	}
	if providerHint != "" {
		if c, ok := FromTaxonomy(providerHint); ok {
			return c, DisplayLabel(c)
		}
	}
	return models.CategoryOther, DisplayLabel(models.CategoryOther)
}
