package core

import (
	"errors"
	"testing"
)

func TestBuildPageable(t *testing.T) {
	p, err := BuildPageable(10, 20, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != (Pageable{Limit: 10, Offset: 20, Total: 5}) {
		t.Fatalf("unexpected pageable: %+v", p)
	}

	for _, tc := range []struct{ limit, offset, total int }{
		{-1, 0, 0},
		{0, -1, 0},
		{1, 1, -1},
	} {
		if _, err := BuildPageable(tc.limit, tc.offset, tc.total); !errors.Is(err, ErrValidation) {
			t.Fatalf("%+v: expected ErrValidation, got %v", tc, err)
		}
	}
}

func TestWindow(t *testing.T) {
	cases := []struct {
		n, limit, offset int
		lo, hi           int
	}{
		{5, 2, 0, 0, 2},
		{5, 2, 4, 4, 5},
		{5, 2, 5, 5, 5},
		{5, 2, 9, 5, 5},
		{5, 0, 0, 5, 5},
		{0, 10, 0, 0, 0},
		{5, 100, 1, 1, 5},
	}
	for _, tc := range cases {
		lo, hi := Window(tc.n, tc.limit, tc.offset)
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("Window(%d,%d,%d) = [%d,%d), want [%d,%d)", tc.n, tc.limit, tc.offset, lo, hi, tc.lo, tc.hi)
		}
	}
}
