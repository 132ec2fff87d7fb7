package transcript

// Statistics aggregates a whole parse. Token totals are sums over the
// per-entry usage blocks; UsageSeen distinguishes a measured zero from a
// log that carried no usage data at all.
type Statistics struct {
	EntryCounts  map[EntryKind]int `json:"entry_counts"`
	TotalEntries int               `json:"total_entries"`

	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`

	UsageSeen    bool `json:"usage_seen"`
	Unrecognized int  `json:"unrecognized"`
}

func newStatistics() *Statistics {
	return &Statistics{EntryCounts: map[EntryKind]int{}}
}

// count records an emitted entry and folds its usage into the totals.
// Output tokens only accumulate from assistant entries; the other three
// categories accumulate from any entry carrying usage.
func (s *Statistics) count(e *Entry) {
	s.EntryCounts[e.Kind]++
	s.TotalEntries++

	if e.Usage == nil {
		return
	}
	s.UsageSeen = true
	s.InputTokens += e.Usage.InputTokens
	s.CacheWriteTokens += e.Usage.CacheWriteTokens
	s.CacheReadTokens += e.Usage.CacheReadTokens
	if e.Kind == KindAssistant {
		s.OutputTokens += e.Usage.OutputTokens
	}
}

// TotalTokens returns the sum of all four token categories.
func (s *Statistics) TotalTokens() int64 {
	return s.InputTokens + s.OutputTokens + s.CacheWriteTokens + s.CacheReadTokens
}
