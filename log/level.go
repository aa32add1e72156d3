package log

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is a log severity. Higher value means more verbose.
type Level uint8

const (
	LevelOff Level = iota
	LevelErr
	LevelWrn
	LevelInf
	LevelDbg

	MaxLevel = LevelDbg
)

var levelNames = [...]string{"off", "err", "wrn", "inf", "dbg"}

// String returns upper-case name e.g. "WRN", "UNK" for invalid levels
func (l Level) String() string {
	if !l.Valid() {
		return "UNK"
	}
	return strings.ToUpper(levelNames[l])
}

// tag is used in formatted lines e.g. <wrn>
func (l Level) tag() string {
	if !l.Valid() {
		return "unk"
	}
	return levelNames[l]
}

func (l Level) Valid() bool {
	return l <= MaxLevel
}

// LevelNames returns names accepted by ParseLevel, from least to most verbose
func LevelNames() []string {
	return append([]string{}, levelNames[:]...)
}

// ParseLevel accepts a name (off, err, wrn, inf, dbg, case insensitive)
// or a number 0-4
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(MaxLevel) {
		return 0, fmt.Errorf("invalid log level '%s'", s)
	}
	return Level(n), nil
}
