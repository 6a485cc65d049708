package indexset

import (
	"reflect"
	"testing"

	"github.com/tugtool/arbor/spread"
)

func TestOrderedGetBackingIndex(t *testing.T) {
	s := Ordered(spread.FromRange(10, 20))
	for i := 0; i < 10; i++ {
		got, ok := s.GetBackingIndex(i)
		if !ok || got != 10+i {
			t.Errorf("GetBackingIndex(%d) = (%d,%v), want (%d,true)", i, got, ok, 10+i)
		}
	}
}

func TestPermutedGetBackingIndex(t *testing.T) {
	// backing spread [10,11,12,13]; perm picks offsets in reverse
	sp := spread.FromRange(10, 14)
	s := Permuted(sp, []int{3, 2, 1, 0})
	want := []int{13, 12, 11, 10}
	for i, w := range want {
		got, ok := s.GetBackingIndex(i)
		if !ok || got != w {
			t.Errorf("GetBackingIndex(%d) = (%d,%v), want (%d,true)", i, got, ok, w)
		}
	}
}

func TestPermutedBatchGroupedRestoreOrder(t *testing.T) {
	sp := spread.FromRange(0, 4)
	// logical order wants backing [3,1,0,2]; grouped perm reorders by
	// offset (ascending) for I/O, restoreOrder maps logical->grouped.
	groupedPerm := []int{0, 1, 2, 3} // offsets == backing indices here
	// logical position 0 -> backing 3 -> offset 3 -> grouped index 3
	// logical position 1 -> backing 1 -> offset 1 -> grouped index 1
	// logical position 2 -> backing 0 -> offset 0 -> grouped index 0
	// logical position 3 -> backing 2 -> offset 2 -> grouped index 2
	restoreOrder := []int{3, 1, 0, 2}
	s := PermutedBatchGrouped(sp, groupedPerm, restoreOrder)

	want := []int{3, 1, 0, 2}
	for i, w := range want {
		got, ok := s.GetBackingIndex(i)
		if !ok || got != w {
			t.Errorf("GetBackingIndex(%d) = (%d,%v), want (%d,true)", i, got, ok, w)
		}
	}
}

func TestToBackingIndicesForMutationSortsDedupsValidates(t *testing.T) {
	s := Ordered(spread.FromRange(0, 5))
	got, err := s.ToBackingIndicesForMutation("test", []int{3, 1, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 3}) {
		t.Errorf("got %v, want [0 1 3]", got)
	}

	if _, err := s.ToBackingIndicesForMutation("test", []int{10}); err == nil {
		t.Errorf("expected IndexOutOfBounds error")
	}
}

func TestHeadTailCollapseToEmptyOrdered(t *testing.T) {
	s := Permuted(spread.FromRange(0, 3), []int{2, 1, 0})
	empty := s.Head(0)
	if !empty.IsOrdered() || !empty.IsEmpty() {
		t.Errorf("expected Head(0) to collapse to empty Ordered set")
	}
}

func TestHeadIdempotentMin(t *testing.T) {
	s := Ordered(spread.FromRange(0, 10))
	got := s.Head(3).Head(7)
	want := s.Head(3)
	if got.Len() != want.Len() {
		t.Errorf("Head(3).Head(7).Len() = %d, want %d", got.Len(), want.Len())
	}
}

func TestFilterBackingIndicesOnPermuted(t *testing.T) {
	sp := spread.FromRange(0, 5)
	s := Permuted(sp, []int{4, 3, 2, 1, 0}) // logical order: 4,3,2,1,0
	filtered := s.FilterBackingIndices(func(b int) bool { return b%2 == 0 })
	// surviving backing indices in logical order: 4, 2, 0
	got := []int{}
	for i := 0; i < filtered.Len(); i++ {
		b, ok := filtered.GetBackingIndex(i)
		if !ok {
			t.Fatalf("unexpected missing backing index at %d", i)
		}
		got = append(got, b)
	}
	want := []int{4, 2, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFromOrderedIndicesRoundTrip(t *testing.T) {
	s := FromOrderedIndices([]int{7, 2, 9, 2})
	got := []int{}
	for i := 0; i < s.Len(); i++ {
		b, _ := s.GetBackingIndex(i)
		got = append(got, b)
	}
	want := []int{7, 2, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReverse(t *testing.T) {
	s := Ordered(spread.FromRange(0, 5))
	rev := s.Reverse()
	got := []int{}
	for i := 0; i < rev.Len(); i++ {
		b, _ := rev.GetBackingIndex(i)
		got = append(got, b)
	}
	want := []int{4, 3, 2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
