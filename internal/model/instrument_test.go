package model

import "testing"

func TestInstrumentKey(t *testing.T) {
	inst := Instrument{Venue: "v1", PollKey: "A"}
	if got, want := inst.Key(), "v1:A"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestNewActiveSetDropsExpired(t *testing.T) {
	now := int64(1_000_000)
	instruments := []Instrument{
		{Venue: "v1", PollKey: "A", ExpirationMs: now + 1000},
		{Venue: "v1", PollKey: "B", ExpirationMs: now - 1},
		{Venue: "v1", PollKey: "C", ExpirationMs: now},
	}

	set := NewActiveSet("v1", now, instruments)

	if set.Count != 1 {
		t.Fatalf("Count = %d, want 1", set.Count)
	}
	if _, ok := set.Instruments["v1:A"]; !ok {
		t.Errorf("expected v1:A to survive, got %+v", set.Instruments)
	}
	if _, ok := set.Instruments["v1:B"]; ok {
		t.Errorf("expected v1:B (already expired) to be dropped")
	}
	if _, ok := set.Instruments["v1:C"]; ok {
		t.Errorf("expected v1:C (expiring exactly now) to be dropped")
	}
}

func TestNewActiveSetDedupKeepsLaterExpiration(t *testing.T) {
	instruments := []Instrument{
		{Venue: "v1", PollKey: "A", ExpirationMs: 5000, Title: "first"},
		{Venue: "v1", PollKey: "A", ExpirationMs: 9000, Title: "second"},
	}

	set := NewActiveSet("v1", 0, instruments)

	got := set.Instruments["v1:A"]
	if got.ExpirationMs != 9000 || got.Title != "second" {
		t.Errorf("dedup kept wrong instrument: %+v", got)
	}
}

func TestInstrumentEqual(t *testing.T) {
	a := Instrument{Venue: "v1", PollKey: "A", Title: "t", Extra: map[string]string{"k": "v"}}
	b := a
	b.Extra = map[string]string{"k": "v"}

	if !a.Equal(b) {
		t.Errorf("expected equal instruments to compare equal")
	}

	b.Title = "other"
	if a.Equal(b) {
		t.Errorf("expected differing title to compare unequal")
	}
}
