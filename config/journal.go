package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kjk/flashlog/atomicfile"
)

// journal is an append-only text file, one change per line:
// <timestamp ms> set <key> <hex value>
// <timestamp ms> del <key>
// Later lines override earlier ones.

const (
	kindSet = "set"
	kindDel = "del"
)

type change struct {
	TimestampMs int64
	Kind        string
	Key         string
	Value       []byte
}

func formatChange(c *change) string {
	if c.Kind == kindDel {
		return fmt.Sprintf("%d %s %s\n", c.TimestampMs, c.Kind, c.Key)
	}
	return fmt.Sprintf("%d %s %s %s\n", c.TimestampMs, c.Kind, c.Key, hex.EncodeToString(c.Value))
}

// perf: allow re-using change
func parseChange(line string, res *change) error {
	parts := strings.Split(line, " ")
	if len(parts) < 3 {
		return fmt.Errorf("invalid journal line: '%s'", line)
	}
	var err error
	res.TimestampMs, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || res.TimestampMs < 0 {
		return fmt.Errorf("invalid time in journal line: '%s'", line)
	}
	res.Kind = parts[1]
	res.Key = parts[2]
	res.Value = nil
	switch res.Kind {
	case kindDel:
		if len(parts) != 3 {
			return fmt.Errorf("invalid journal line: '%s'", line)
		}
	case kindSet:
		if len(parts) != 4 {
			return fmt.Errorf("invalid journal line: '%s'", line)
		}
		res.Value, err = hex.DecodeString(parts[3])
		if err != nil {
			return fmt.Errorf("invalid value in journal line: '%s'", line)
		}
	default:
		return fmt.Errorf("invalid kind in journal line: '%s'", line)
	}
	return nil
}

// journalState is the result of replaying a journal
type journalState struct {
	vals   map[string][]byte
	nLines int
	// last line was cut short, e.g. by power loss during append
	torn string
}

// readJournal replays the journal at path. Missing file is an empty journal.
// An unparsable last line without a newline is an interrupted append
// and is skipped, any other invalid line is an error.
func readJournal(path string) (*journalState, error) {
	res := &journalState{vals: map[string][]byte{}}
	d, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	var c change
	lines := strings.Split(string(d), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		if err = parseChange(line, &c); err != nil {
			if i == len(lines)-1 {
				res.torn = line
				break
			}
			return nil, err
		}
		res.nLines++
		if c.Kind == kindDel {
			delete(res.vals, c.Key)
		} else {
			res.vals[c.Key] = c.Value
		}
	}
	return res, nil
}

func appendToFileRobust(path string, d []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	if _, err = f.Write(d); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func appendChanges(path string, changes []*change) error {
	var sb strings.Builder
	for _, c := range changes {
		sb.WriteString(formatChange(c))
	}
	return appendToFileRobust(path, []byte(sb.String()))
}

// writeSnapshot atomically replaces the journal with one set line per value
func writeSnapshot(path string, keys []string, vals map[string][]byte) error {
	ts := time.Now().UTC().UnixMilli()
	var sb strings.Builder
	for _, k := range keys {
		v, ok := vals[k]
		if !ok {
			continue
		}
		sb.WriteString(formatChange(&change{TimestampMs: ts, Kind: kindSet, Key: k, Value: v}))
	}
	return atomicfile.WriteFile(path, []byte(sb.String()))
}
