package transcript

import (
	"strings"
	"testing"
)

func TestSummarizeDelegationsDedupsByInvocation(t *testing.T) {
	log := `{"type":"assistant","uuid":"a1","timestamp":"2026-08-24T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Task","input":{"subagent_type":"tester","description":"run the suite"}}]}}
{"type":"progress","uuid":"p1","timestamp":"2026-08-24T10:00:01Z","parent_tool_use_id":"t1","data":{"type":"agent_progress","message":"first"}}
{"type":"progress","uuid":"p2","timestamp":"2026-08-24T10:00:02Z","parent_tool_use_id":"t1","data":{"type":"agent_progress","message":"second"}}
{"type":"progress","uuid":"p3","timestamp":"2026-08-24T10:00:03Z","parent_tool_use_id":"t1","data":{"type":"agent_progress","message":"third"}}
`
	result, err := Parse(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	// The raw stream keeps all three progress records.
	if got := result.Stats.EntryCounts[KindDelegation]; got != 3 {
		t.Fatalf("raw delegation entries = %d, want 3", got)
	}

	summaries := SummarizeDelegations(result.Entries)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	s := summaries[0]
	if s.InvocationID != "t1" {
		t.Errorf("invocation id = %q, want t1", s.InvocationID)
	}
	if s.AgentType != "tester" || s.Description != "run the suite" {
		t.Errorf("summary detail = %q/%q", s.AgentType, s.Description)
	}
	if s.Records != 3 {
		t.Errorf("records = %d, want 3", s.Records)
	}
}

func TestSummarizeDelegationsSkipsMissingInvocationID(t *testing.T) {
	log := `{"type":"progress","uuid":"p1","timestamp":"2026-08-24T10:00:00Z","data":{"type":"agent_progress","message":"untethered"}}
{"type":"progress","uuid":"p2","timestamp":"2026-08-24T10:00:01Z","data":{"type":"agent_progress","message":"also untethered"}}
{"type":"progress","uuid":"p3","timestamp":"2026-08-24T10:00:02Z","parent_tool_use_id":"t1","data":{"type":"agent_progress","message":"tracked"}}
`
	result, err := Parse(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	// Records without an invocation id have nothing tying them together,
	// so they must not pile up under a shared blank key.
	summaries := SummarizeDelegations(result.Entries)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].InvocationID != "t1" {
		t.Errorf("invocation id = %q, want t1", summaries[0].InvocationID)
	}
	if summaries[0].Records != 1 {
		t.Errorf("records = %d, want 1", summaries[0].Records)
	}
}

func TestSummarizeSearchesDedupsByQuery(t *testing.T) {
	log := `{"type":"progress","uuid":"p1","timestamp":"2026-08-24T10:00:00Z","data":{"type":"search_query","query":"go sum types"}}
{"type":"progress","uuid":"p2","timestamp":"2026-08-24T10:00:01Z","data":{"type":"search_query","query":"go sum types"}}
{"type":"progress","uuid":"p3","timestamp":"2026-08-24T10:00:02Z","data":{"type":"search_results","query":"go sum types","query_id":"q1","count":1}}
{"type":"progress","uuid":"p4","timestamp":"2026-08-24T10:00:03Z","data":{"type":"search_query","query":"another query"}}
{"type":"search_links","id":"q1","results":[{"title":"Sealed interfaces","url":"https://example.dev/sealed"}]}
`
	result, err := Parse(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	summaries := SummarizeSearches(result.Entries)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].Query != "go sum types" {
		t.Errorf("first query = %q", summaries[0].Query)
	}
	if len(summaries[0].Results) != 1 || summaries[0].Results[0].URL != "https://example.dev/sealed" {
		t.Errorf("first summary results = %+v", summaries[0].Results)
	}
	if summaries[1].Query != "another query" {
		t.Errorf("second query = %q", summaries[1].Query)
	}
	if summaries[1].Results != nil {
		t.Errorf("second summary should have no results, got %+v", summaries[1].Results)
	}
}
