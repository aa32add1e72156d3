package require

import (
	"strings"

	"github.com/alecthomas/assert"
	"github.com/pmezard/go-difflib/difflib"
)

// this is a subset of github.com/stretchr/testify/require on top of
// github.com/alecthomas/assert, only the functions I use

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

// recorder remembers if an assert reported a failure, asserts in
// github.com/alecthomas/assert don't return a result
type recorder struct {
	t      TestingT
	failed bool
}

func (r *recorder) Errorf(format string, args ...interface{}) {
	r.failed = true
	r.t.Errorf(format, args...)
}

func (r *recorder) FailNow() {
	r.failed = true
	r.t.FailNow()
}

func (r *recorder) failNow() {
	if r.failed {
		r.t.FailNow()
	}
}

// Len asserts that the specified object has specific length.
//
//	require.Len(t, mySlice, 3)
func Len(t TestingT, object interface{}, length int, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.Len(r, object, length, msgAndArgs...)
	r.failNow()
}

func Nil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.Nil(r, object, msgAndArgs...)
	r.failNow()
}

func NotNil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.NotNil(r, object, msgAndArgs...)
	r.failNow()
}

// NoError asserts that a function returned no error (i.e. `nil`).
//
//	f, err := flash.OpenFile(path, size)
//	require.NoError(t, err)
func NoError(t TestingT, err error, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.NoError(r, err, msgAndArgs...)
	r.failNow()
}

func Error(t TestingT, err error, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.Error(r, err, msgAndArgs...)
	r.failNow()
}

// Equal asserts that two objects are equal.
//
//	require.Equal(t, 123, 123)
func Equal(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.Equal(r, expected, actual, msgAndArgs...)
	r.failNow()
}

func True(t TestingT, value bool, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.True(r, value, msgAndArgs...)
	r.failNow()
}

func False(t TestingT, value bool, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.False(r, value, msgAndArgs...)
	r.failNow()
}

// Contains asserts that s contains sub
func Contains(t TestingT, s string, sub string, msgAndArgs ...interface{}) {
	r := &recorder{t: t}
	assert.Contains(r, s, sub, msgAndArgs...)
	r.failNow()
}

// EqualLines compares multi-line text and shows a unified diff
// on mismatch, which is more readable than the default dump
func EqualLines(t TestingT, expected string, actual string) {
	if expected == actual {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	t.Errorf("text differs:\n%s", strings.TrimRight(diff, "\n"))
	t.FailNow()
}
