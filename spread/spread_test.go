package spread

import (
	"reflect"
	"testing"

	"github.com/kr/pretty"
)

func TestHeadLenAndExcludingEmptyIdempotent(t *testing.T) {
	s := Full(10)
	for _, n := range []int{0, 3, 10, 20} {
		got := s.Head(n)
		want := n
		if want > s.Len() {
			want = s.Len()
		}
		if got.Len() != want {
			t.Errorf("Head(%d).Len() = %d, want %d", n, got.Len(), want)
		}
		if !reflect.DeepEqual(got.Excluding(nil), got) {
			t.Errorf("Head(%d).Excluding(nil) changed the spread", n)
		}
	}
}

func TestExcludingLenAndIntersectionEmpty(t *testing.T) {
	s := FromRange(0, 20)
	removals := []int{1, 3, 5, 19}
	got := s.Excluding(removals)
	if got.Len() != s.Len()-len(removals) {
		t.Errorf("Excluding len = %d, want %d", got.Len(), s.Len()-len(removals))
	}
	removed := FromSorted(removals)
	if !got.Intersection(removed).IsEmpty() {
		t.Errorf("expected no overlap between excluded spread and removed set")
	}
}

func TestExcludingSplitsStretch(t *testing.T) {
	s := FromRange(0, 10)
	got := s.Excluding([]int{3, 4, 5})
	want := []Stretch{{0, 3}, {6, 10}}
	if !reflect.DeepEqual(got.Stretches(), want) {
		t.Errorf("stretches diff: %v", pretty.Diff(got.Stretches(), want))
	}
	if got.Len() != 7 {
		t.Errorf("got len %d, want 7", got.Len())
	}
}

func TestAppendingCoalescesAdjacent(t *testing.T) {
	a := FromRange(0, 5)
	b := FromRange(5, 10)
	got := a.Appending(b)
	if !got.IsContiguous() {
		t.Errorf("expected coalesced single stretch, got %v", got.Stretches())
	}
	if got.Len() != 10 {
		t.Errorf("got len %d, want 10", got.Len())
	}
}

func TestAppendingNonAdjacent(t *testing.T) {
	a := FromRange(0, 5)
	b := FromRange(10, 15)
	got := a.Appending(b)
	if got.IsContiguous() {
		t.Errorf("expected two stretches, got contiguous")
	}
	if got.Len() != 10 {
		t.Errorf("got len %d, want 10", got.Len())
	}
}

func TestGetAndContains(t *testing.T) {
	s := FromSorted([]int{2, 3, 4, 10, 11, 20})
	for i, want := range []int{2, 3, 4, 10, 11, 20} {
		got, ok := s.Get(i)
		if !ok || got != want {
			t.Errorf("Get(%d) = (%d, %v), want (%d, true)", i, got, ok, want)
		}
	}
	if _, ok := s.Get(6); ok {
		t.Errorf("Get(6) should be out of range")
	}
	for _, idx := range []int{2, 10, 20} {
		if !s.Contains(idx) {
			t.Errorf("expected Contains(%d)", idx)
		}
	}
	if s.Contains(5) {
		t.Errorf("did not expect Contains(5)")
	}
}

func TestHeadTruncatesAtBoundary(t *testing.T) {
	s := FromSorted([]int{0, 1, 2, 5, 6, 7})
	got := s.Head(4)
	want := []Stretch{{0, 3}, {5, 6}}
	if !reflect.DeepEqual(got.Stretches(), want) {
		t.Errorf("stretches diff: %v", pretty.Diff(got.Stretches(), want))
	}
}

func TestTailAndSkipComplement(t *testing.T) {
	s := FromRange(0, 10)
	tail := s.Tail(4)
	skip := s.Skip(6)
	if !reflect.DeepEqual(tail.Stretches(), skip.Stretches()) {
		t.Errorf("Tail(4) and Skip(6) should agree: %v vs %v", tail.Stretches(), skip.Stretches())
	}
}

func TestFromOrderedIndicesPreservesOrder(t *testing.T) {
	sp, perm := FromOrderedIndices([]int{5, 1, 3})
	if sp.Len() != 3 {
		t.Fatalf("expected len 3, got %d", sp.Len())
	}
	got := make([]int, len(perm))
	for i, p := range perm {
		v, ok := sp.Get(p)
		if !ok {
			t.Fatalf("perm offset %d out of range", p)
		}
		got[i] = v
	}
	if !reflect.DeepEqual(got, []int{5, 1, 3}) {
		t.Errorf("got %v, want original order [5 1 3]", got)
	}
}

func TestIntersectionSweep(t *testing.T) {
	a := FromSorted([]int{0, 1, 2, 3, 10, 11})
	b := FromSorted([]int{2, 3, 4, 11, 12})
	got := a.Intersection(b).ToSlice()
	want := []int{2, 3, 11}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
