package shell

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"
)

type status struct {
	Sectors          int    `json:"sectors"`
	UsedSectors      int    `json:"used_sectors"`
	CapacityBytes    int64  `json:"capacity_bytes"`
	UsedBytes        int64  `json:"used_bytes"`
	ExportInProgress bool   `json:"export_in_progress"`
	LogLevel         string `json:"log_level,omitempty"`
	Dropped          int64  `json:"dropped_lines"`
	Failed           int64  `json:"failed_lines"`
}

func getStatus(env *Env) (*status, error) {
	st, err := env.Store.Stats()
	if err != nil {
		return nil, err
	}
	res := &status{
		Sectors:          st.Sectors,
		UsedSectors:      st.UsedSectors,
		CapacityBytes:    st.Capacity,
		UsedBytes:        st.Used,
		ExportInProgress: env.Store.ExportInProgress(),
	}
	if env.Levels != nil {
		if s := env.Levels.Log; s != nil {
			res.LogLevel = levelName(s.Level())
		}
	}
	if env.Backend != nil {
		res.Dropped = env.Backend.Dropped()
		res.Failed = env.Backend.Failed()
	}
	return res, nil
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func cmdStatus(env *Env, args []string, w io.Writer) error {
	asJSON := len(args) == 1 && args[0] == "--json"
	if len(args) == 1 && !asJSON {
		fmt.Fprintf(w, "Unknown option '%s'.\n", args[0])
		return ErrUsage
	}
	st, err := getStatus(env)
	if err != nil {
		fmt.Fprintf(w, "Failed to get status: %s\n", err)
		return err
	}
	if asJSON {
		d, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = w.Write(pretty.Pretty(d))
		return err
	}
	fmt.Fprintf(w, "Sectors: %d of %d in use\n", st.UsedSectors, st.Sectors)
	fmt.Fprintf(w, "Used: %s of %s (%.1f%%)\n", humanize.IBytes(uint64(st.UsedBytes)), humanize.IBytes(uint64(st.CapacityBytes)), percent(st.UsedBytes, st.CapacityBytes))
	fmt.Fprintf(w, "Log export in progress: %s\n", boolStr(st.ExportInProgress))
	if st.LogLevel != "" {
		fmt.Fprintf(w, "Log level: %s\n", st.LogLevel)
	}
	if env.Backend != nil {
		fmt.Fprintf(w, "Lines dropped: %s, failed: %s\n", humanize.Comma(st.Dropped), humanize.Comma(st.Failed))
	}
	return nil
}
