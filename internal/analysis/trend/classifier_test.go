package trend

import (
	"testing"

	"github.com/skalibog/bnlive/pkg/models"
)

func hl(high, low float64) models.Bar {
	return models.Bar{High: high, Low: low}
}

func TestLabelExampleSequence(t *testing.T) {
	got := Label([]models.Bar{hl(100, 90), hl(105, 95), hl(103, 97)})
	want := []models.Trend{models.TrendNA, models.TrendUp, models.TrendSideways}
	if len(got) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestClassify(t *testing.T) {
	prev := hl(100, 90)
	cases := []struct {
		name string
		cur  models.Bar
		want models.Trend
	}{
		{"higher high higher low", hl(101, 91), models.TrendUp},
		{"lower high lower low", hl(99, 89), models.TrendDown},
		{"higher high lower low", hl(101, 89), models.TrendSideways},
		{"higher high equal low", hl(101, 90), models.TrendSideways},
		{"equal high higher low", hl(100, 91), models.TrendSideways},
		{"lower high higher low", hl(99, 91), models.TrendSideways},
		{"unchanged", hl(100, 90), models.TrendSideways},
	}
	for _, tc := range cases {
		if got := Classify(prev, tc.cur); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestLabelFirstBarNA(t *testing.T) {
	got := Label([]models.Bar{hl(1, 0)})
	if len(got) != 1 || got[0] != models.TrendNA {
		t.Fatalf("expected single NA label, got %v", got)
	}
	if Label(nil) != nil {
		t.Fatalf("expected nil labels for empty series")
	}
}

func TestLabelNotRevisedByLaterBars(t *testing.T) {
	base := []models.Bar{hl(100, 90), hl(105, 95), hl(103, 97)}
	extended := append(append([]models.Bar{}, base...), hl(90, 80), hl(120, 100))
	short := Label(base)
	long := Label(extended)
	for i := range short {
		if short[i] != long[i] {
			t.Fatalf("label %d changed after appending bars: %s -> %s", i, short[i], long[i])
		}
	}
}
