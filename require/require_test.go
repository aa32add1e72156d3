package require

import (
	"fmt"
	"strings"
	"testing"
)

type fakeT struct {
	errors []string
	failed bool
}

func (t *fakeT) Errorf(format string, args ...interface{}) {
	t.errors = append(t.errors, fmt.Sprintf(format, args...))
}

func (t *fakeT) FailNow() {
	t.failed = true
}

func TestEqualLines(t *testing.T) {
	ft := &fakeT{}
	EqualLines(ft, "a\nb\nc\n", "a\nb\nc\n")
	if ft.failed {
		t.Fatalf("equal text failed")
	}

	EqualLines(ft, "a\nb\nc\n", "a\nx\nc\n")
	if !ft.failed || len(ft.errors) != 1 {
		t.Fatalf("expected a failure, got %v", ft.errors)
	}
	msg := ft.errors[0]
	if !strings.Contains(msg, "-b") || !strings.Contains(msg, "+x") {
		t.Fatalf("no diff in '%s'", msg)
	}
}

func TestNoErrorFails(t *testing.T) {
	ft := &fakeT{}
	NoError(ft, nil)
	if ft.failed {
		t.Fatalf("nil error failed")
	}
	NoError(ft, fmt.Errorf("boom"))
	if !ft.failed {
		t.Fatalf("expected FailNow")
	}
}

func TestAssertsFailNow(t *testing.T) {
	ft := &fakeT{}
	Equal(ft, 1, 1)
	True(ft, true)
	Contains(ft, "flash log", "log")
	Len(ft, []int{1, 2}, 2)
	if ft.failed || len(ft.errors) != 0 {
		t.Fatalf("passing asserts failed: %v", ft.errors)
	}

	Equal(ft, 1, 2)
	if !ft.failed || len(ft.errors) != 1 {
		t.Fatalf("expected one failure, got %v", ft.errors)
	}

	ft = &fakeT{}
	Contains(ft, "flash log", "disk")
	if !ft.failed {
		t.Fatalf("expected FailNow")
	}
}
