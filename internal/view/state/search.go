package state

import (
	"sort"
	"strings"

	"github.com/signalsfoundry/libya-atlas/model"
)

// NoResultsText is shown when a search matches nothing.
const NoResultsText = "لم يتم العثور على نتائج"

// SearchResult is one matching municipality.
type SearchResult struct {
	Name       string       `json:"name"`
	Region     model.Region `json:"region"`
	RegionName string       `json:"region_name"`
	Population int          `json:"population"`
}

// SearchResults is the outcome of the last search. Cleared means the term
// was empty and any displayed list should be removed; NoResults means the
// term matched nothing and Message carries the indicator to show.
type SearchResults struct {
	Term      string         `json:"term"`
	Results   []SearchResult `json:"results"`
	Cleared   bool           `json:"cleared"`
	NoResults bool           `json:"no_results"`
	Message   string         `json:"message,omitempty"`
}

// Search matches term as a trimmed, case-insensitive substring of the
// municipality names. Results keep the order of ms.
func Search(ms []model.Municipality, term string) SearchResults {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return SearchResults{Cleared: true}
	}

	needle := strings.ToLower(trimmed)
	out := SearchResults{Term: trimmed}
	for _, m := range ms {
		if strings.Contains(strings.ToLower(m.Name), needle) {
			out.Results = append(out.Results, SearchResult{
				Name:       m.Name,
				Region:     m.Region,
				RegionName: m.Region.DisplayName(),
				Population: m.Population,
			})
		}
	}
	if len(out.Results) == 0 {
		out.NoResults = true
		out.Message = NoResultsText
	}
	return out
}

// FilterTopN returns the n most populous municipalities, largest first.
// Equal populations keep load order. ms is not modified; n <= 0 yields an
// empty set.
func FilterTopN(ms []model.Municipality, n int) []model.Municipality {
	if n <= 0 {
		return []model.Municipality{}
	}
	ranked := append([]model.Municipality(nil), ms...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Population != ranked[j].Population {
			return ranked[i].Population > ranked[j].Population
		}
		return ranked[i].Order < ranked[j].Order
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// FilterAll returns a copy of ms in load order.
func FilterAll(ms []model.Municipality) []model.Municipality {
	all := make([]model.Municipality, len(ms))
	copy(all, ms)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Order < all[j].Order })
	return all
}
