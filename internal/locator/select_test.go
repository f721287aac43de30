package locator_test

import (
	"sort"
	"testing"

	"github.com/nodalsync/configsync/internal/locator"
)

func TestSelectOrder_EmptyInput(t *testing.T) {
	t.Parallel()
	if got := locator.SelectOrder(nil, ""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSelectOrder_ContainsAllEndpointsExactlyOnce(t *testing.T) {
	t.Parallel()
	in := []string{"a", "b", "c", "d", "e"}

	got := locator.SelectOrder(in, "")
	if len(got) != len(in) {
		t.Fatalf("expected %d endpoints, got %d", len(in), len(got))
	}

	sortedIn := append([]string(nil), in...)
	sortedGot := append([]string(nil), got...)
	sort.Strings(sortedIn)
	sort.Strings(sortedGot)
	for i := range sortedIn {
		if sortedIn[i] != sortedGot[i] {
			t.Fatalf("expected same set of endpoints, got %v want %v", sortedGot, sortedIn)
		}
	}
}

func TestSelectOrder_HintMovedToFront(t *testing.T) {
	t.Parallel()
	in := []string{"a", "b", "c", "d", "e"}

	for i := 0; i < 20; i++ {
		got := locator.SelectOrder(in, "d")
		if got[0] != "d" {
			t.Fatalf("expected hint at front, got %v", got)
		}
	}
}

func TestSelectOrder_UnknownHintIgnored(t *testing.T) {
	t.Parallel()
	in := []string{"a", "b", "c"}

	got := locator.SelectOrder(in, "z")
	if len(got) != len(in) {
		t.Fatalf("expected %d endpoints, got %d", len(in), len(got))
	}
}
