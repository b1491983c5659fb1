package config

import "testing"

func TestScheduleOpenAt(t *testing.T) {
	sched, err := ParseSchedule(`
0: [[9, 12], [13, 18]]
1: [[9, 18]]
`)
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	cases := []struct {
		weekday, hour int
		want          bool
	}{
		{0, 9, true},
		{0, 12, false}, // end hour is exclusive
		{0, 12 + 1, true},
		{1, 20, false},
		{2, 10, false}, // weekday absent entirely
	}
	for _, c := range cases {
		if got := sched.OpenAt(c.weekday, c.hour); got != c.want {
			t.Errorf("OpenAt(%d, %d) = %v, want %v", c.weekday, c.hour, got, c.want)
		}
	}
}

func TestScheduleEmptyMeansClosed(t *testing.T) {
	var sched Schedule
	if sched.OpenAt(0, 10) {
		t.Fatal("nil schedule should never be open")
	}
}

func TestMissingRequired(t *testing.T) {
	c := defaults()
	missing := c.MissingRequired()
	if len(missing) == 0 {
		t.Fatal("expected missing required settings on bare defaults")
	}

	c.DBClientsDSN = "postgres://x"
	c.DBTicketsDSN = "postgres://y"
	c.DeepgramAPIKey = "k"
	c.ElevenLabsAPIKey = "k"
	if missing := c.MissingRequired(); len(missing) != 0 {
		t.Fatalf("expected no missing settings, got %v", missing)
	}
}
