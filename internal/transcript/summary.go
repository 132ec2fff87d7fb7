package transcript

// DelegationSummary is one deduplicated delegation: a single item per
// invocation id no matter how many progress records the log carried.
type DelegationSummary struct {
	InvocationID string `json:"invocation_id"`
	AgentType    string `json:"agent_type,omitempty"`
	Description  string `json:"description,omitempty"`
	Records      int    `json:"records"`
}

// SearchSummary is one deduplicated search, keyed by exact query text.
type SearchSummary struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results,omitempty"`
}

// SummarizeDelegations collapses delegation entries by invocation id.
// The first occurrence wins for the descriptive fields; Records counts
// every progress record seen for that id. The input entry stream is not
// modified.
func SummarizeDelegations(entries []Entry) []DelegationSummary {
	byID := map[string]int{}
	var summaries []DelegationSummary

	for i := range entries {
		payload, ok := entries[i].Payload.(*DelegationPayload)
		if !ok {
			continue
		}
		// Records without an invocation id are unrelated to each other;
		// collapsing them under "" would merge them into one item.
		id := entries[i].ParentID
		if id == "" {
			continue
		}
		if idx, seen := byID[id]; seen {
			summaries[idx].Records++
			continue
		}
		byID[id] = len(summaries)
		summaries = append(summaries, DelegationSummary{
			InvocationID: id,
			AgentType:    payload.AgentType,
			Description:  payload.Description,
			Records:      1,
		})
	}
	return summaries
}

// SummarizeSearches collapses search entries by exact query text, first
// occurrence wins. Result lists and counts are filled from the first
// results entry carrying the same query.
func SummarizeSearches(entries []Entry) []SearchSummary {
	byQuery := map[string]int{}
	var summaries []SearchSummary

	add := func(query string) int {
		if idx, seen := byQuery[query]; seen {
			return idx
		}
		byQuery[query] = len(summaries)
		summaries = append(summaries, SearchSummary{Query: query})
		return len(summaries) - 1
	}

	for i := range entries {
		switch payload := entries[i].Payload.(type) {
		case *SearchQueryPayload:
			if payload.Query != "" {
				add(payload.Query)
			}
		case *SearchResultsPayload:
			if payload.Query == "" {
				continue
			}
			idx := add(payload.Query)
			if summaries[idx].Results == nil {
				summaries[idx].Results = payload.Results
				summaries[idx].Count = payload.Count
			}
		}
	}
	return summaries
}
