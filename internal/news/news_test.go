package news

import (
	"reflect"
	"testing"
)

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	in := []Article{
		{Title: "A", Source: "first"},
		{Title: "B"},
		{Title: "A", Source: "second"},
		{Title: "a"},
		{Title: "B"},
	}

	out := Dedupe(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique titles, got %d: %+v", len(out), out)
	}
	if out[0].Source != "first" {
		t.Errorf("expected first occurrence kept, got %q", out[0].Source)
	}
	if out[2].Title != "a" {
		t.Errorf("dedup must be case-sensitive, got %+v", out)
	}
}

func TestScore_TitleVersusBody(t *testing.T) {
	inTitle := Article{Title: "Technology stocks rally", Summary: "markets are up"}
	inBody := Article{Title: "Stocks rally", Summary: "technology leads markets"}
	none := Article{Title: "Weather", Summary: "rain"}

	if got := Score(inTitle, []string{"technology"}); got != 3 {
		t.Errorf("title hit: expected 3, got %d", got)
	}
	if got := Score(inBody, []string{"technology"}); got != 1 {
		t.Errorf("body hit: expected 1, got %d", got)
	}
	if got := Score(none, []string{"technology"}); got != 0 {
		t.Errorf("no hit: expected 0, got %d", got)
	}
}

func TestScore_AccumulatesAcrossTopicsAndWords(t *testing.T) {
	a := Article{Title: "Climate science update", Summary: "new climate policy announced"}

	// "climate" (title, 3) + "science" (title, 3) + "policy" (body, 1) + "climate" again (3)
	got := Score(a, []string{"climate science", "policy", "Climate"})
	if got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}

func TestScore_RawSubstringMatch(t *testing.T) {
	a := Article{Title: "Startup raises funds", Summary: ""}
	if got := Score(a, []string{"art"}); got != 3 {
		t.Errorf("expected substring match on 'start', got %d", got)
	}
}

func TestRank_SortsStableAndTruncates(t *testing.T) {
	in := []Article{
		{Title: "one", Summary: "nothing"},
		{Title: "go news", Summary: ""},
		{Title: "two", Summary: "nothing"},
		{Title: "three", Summary: "go"},
		{Title: "one", Summary: "go go go"},
	}

	out := Rank(in, []string{"go"}, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(out))
	}
	got := []string{out[0].Title, out[1].Title, out[2].Title}
	want := []string{"go news", "three", "one"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected order: got %v want %v", got, want)
	}
	if out[0].RelevanceScore != 3 || out[1].RelevanceScore != 1 || out[2].RelevanceScore != 0 {
		t.Errorf("unexpected scores: %+v", out)
	}
	if in[0].RelevanceScore != 0 || in[1].RelevanceScore != 0 {
		t.Errorf("input slice was mutated: %+v", in)
	}
}

func TestRank_LimitBounds(t *testing.T) {
	in := []Article{{Title: "a"}, {Title: "b"}}

	if out := Rank(in, nil, 10); len(out) != 2 {
		t.Errorf("limit above size should keep all, got %d", len(out))
	}
	if out := Rank(in, nil, 0); len(out) != 0 {
		t.Errorf("limit 0 should return nothing, got %d", len(out))
	}
	if out := Rank(nil, []string{"x"}, 5); len(out) != 0 {
		t.Errorf("empty input should return empty, got %d", len(out))
	}
}

func TestParseTopics(t *testing.T) {
	got := ParseTopics(" technology, ,science ,,  world news ")
	want := []string{"technology", "science", "world news"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}
