package reminder

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: TimeOfDay{Hour: 9}},
		{raw: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{raw: "00:00", want: TimeOfDay{}},
		{raw: "7:05", want: TimeOfDay{Hour: 7, Minute: 5}},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "12-30", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeFormat) {
					t.Fatalf("ParseTimeOfDay(%q) err = %v, want ErrInvalidTimeFormat", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	t.Parallel()
	if s := (TimeOfDay{Hour: 9, Minute: 5}).String(); s != "09:05" {
		t.Fatalf("String = %q, want 09:05", s)
	}
}

func TestAddSameKeyOverwrites(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	at := TimeOfDay{Hour: 9}
	k1 := r.Add(1, at, "x")
	k2 := r.Add(1, at, "x")
	if k1 != k2 {
		t.Fatalf("keys differ: %v vs %v", k1, k2)
	}
	if got := r.List(1); len(got) != 1 {
		t.Fatalf("List = %v, want one reminder", got)
	}
}

func TestDistinctTextsAreDistinctReminders(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	at := TimeOfDay{Hour: 9}
	kx := r.Add(1, at, "x")
	ky := r.Add(1, at, "y")
	if kx == ky {
		t.Fatal("expected distinct keys")
	}
	got := r.List(1)
	if len(got) != 2 || got[0].Text != "x" || got[1].Text != "y" {
		t.Fatalf("List = %+v", got)
	}
}

func TestListOrdersByTime(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Add(1, TimeOfDay{Hour: 18, Minute: 30}, "evening")
	r.Add(1, TimeOfDay{Hour: 7}, "morning")
	r.Add(1, TimeOfDay{Hour: 12}, "noon")

	got := r.List(1)
	want := []string{"morning", "noon", "evening"}
	for i, w := range want {
		if got[i].Text != w {
			t.Fatalf("List[%d] = %q, want %q", i, got[i].Text, w)
		}
	}
	if r.List(2) == nil || len(r.List(2)) != 0 {
		t.Fatal("unknown user should yield an empty, non-nil list")
	}
}

func TestRegistryUsersIsolated(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var wg sync.WaitGroup
	for u := int64(1); u <= 20; u++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for m := 0; m < 30; m++ {
				r.Add(uid, TimeOfDay{Hour: 8, Minute: m}, fmt.Sprintf("u%d", uid))
				_ = r.List(uid)
			}
		}(u)
	}
	wg.Wait()

	for u := int64(1); u <= 20; u++ {
		got := r.List(u)
		if len(got) != 30 {
			t.Fatalf("user %d: %d reminders, want 30", u, len(got))
		}
		for _, rem := range got {
			if rem.UserID != u || rem.Text != fmt.Sprintf("u%d", u) {
				t.Fatalf("user %d sees %+v", u, rem)
			}
		}
	}
	if r.Len() != 600 {
		t.Fatalf("Len = %d, want 600", r.Len())
	}
}
