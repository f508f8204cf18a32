package duration_test

import (
	"testing"
	"time"

	"github.com/nabbar/eslswitch/duration"
)

func TestTimeReturnsUnderlyingDuration(t *testing.T) {
	d := duration.Duration(90 * time.Second)

	if d.Time() != 90*time.Second {
		t.Fatalf("Time() = %v, want %v", d.Time(), 90*time.Second)
	}
}

func TestDaysCountsWholeDays(t *testing.T) {
	d := duration.Duration(50 * time.Hour)

	if got := d.Days(); got != 2 {
		t.Fatalf("Days() = %d, want 2", got)
	}
}

func TestStringOmitsDaysUnderOneDay(t *testing.T) {
	d := duration.Duration(30 * time.Second)

	if got, want := d.String(), (30 * time.Second).String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestStringIncludesDaysSegment(t *testing.T) {
	d := duration.Duration(26 * time.Hour)

	if got, want := d.String(), "1d2h0m0s"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
