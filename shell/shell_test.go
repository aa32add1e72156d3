package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjk/flashlog/config"
	"github.com/kjk/flashlog/flash"
	"github.com/kjk/flashlog/log"
	"github.com/kjk/flashlog/logstore"
	"github.com/kjk/flashlog/require"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	reg := log.NewRegistry()
	reg.Stdout = nil
	s := &logstore.Store{
		Area: flash.NewMem(4 * logstore.DefaultSectorSize),
		Log:  reg.Register(logstore.SourceName, log.LevelDbg),
	}
	require.NoError(t, s.Init())
	reg.Register("net", log.LevelWrn)

	cfg := &config.Manager{
		Path: filepath.Join(t.TempDir(), "config.txt"),
		Keys: []config.Key{
			{Name: logstore.LogLevelKey, Size: 1, Default: []byte{byte(log.LevelInf)}, Resettable: true},
		},
		Log: reg.Register("config", log.LevelDbg),
	}
	require.NoError(t, config.Open(cfg))
	levels := logstore.NewLevelController(cfg, reg)
	levels.Init()
	return &Env{
		Store:  s,
		Levels: levels,
		Config: cfg,
	}
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := Run(env, args, &buf)
	return buf.String(), err
}

func TestExportStatus(t *testing.T) {
	env := newTestEnv(t)
	out, err := run(t, env, "export_status")
	require.NoError(t, err)
	require.Equal(t, "Log export in progress: false\n", out)

	env.Store.SetExportInProgress(true)
	out, _ = run(t, env, "export_status")
	require.Equal(t, "Log export in progress: true\n", out)
}

func TestExportAndClear(t *testing.T) {
	env := newTestEnv(t)
	out, err := run(t, env, "export")
	require.NoError(t, err)
	require.Equal(t, "No stored log entries.\n", out)

	require.NoError(t, env.Store.Append([]byte("first line\n")))
	require.NoError(t, env.Store.Append([]byte("second line\n")))
	out, err = run(t, env, "export")
	require.NoError(t, err)
	require.Equal(t, "first line\nsecond line\n", out)

	out, err = run(t, env, "clear")
	require.NoError(t, err)
	require.Equal(t, "Clearing stored logs...\nStored logs cleared.\n", out)
	out, _ = run(t, env, "export")
	require.Equal(t, "No stored log entries.\n", out)
}

func TestListLogLevels(t *testing.T) {
	env := newTestEnv(t)
	out, err := run(t, env, "list_log_levels")
	require.NoError(t, err)
	exp := `Available severity levels:
  off
  err
  wrn
  inf
  dbg

Module log level summary:
Module Log Levels (3 modules):
Module                   Runtime  Compiled
------                   -------  --------
log_storage              inf      dbg     
net                      wrn      wrn     
config                   inf      dbg     

Use 'log_storage set_log_level <level>' to change runtime levels for all modules.
`
	require.EqualLines(t, exp, out)
}

func TestSetLogLevel(t *testing.T) {
	env := newTestEnv(t)
	out, err := run(t, env, "set_log_level", "dbg")
	require.NoError(t, err)
	require.Equal(t, "Log level set to dbg (4).\n", out)
	v, _ := env.Config.Get(logstore.LogLevelKey)
	require.Equal(t, []byte{4}, v)

	out, err = run(t, env, "set_log_level", "2")
	require.NoError(t, err)
	require.Equal(t, "Log level set to wrn (2).\n", out)

	// names below the floor are clamped
	out, err = run(t, env, "set_log_level", "OFF")
	require.NoError(t, err)
	require.Equal(t, "Log level set to err (1).\n", out)

	// numbers below the floor are rejected
	for _, arg := range []string{"0", "5", "loud", "-1"} {
		out, err = run(t, env, "set_log_level", arg)
		require.True(t, errors.Is(err, ErrUsage), arg)
		require.Contains(t, out, "Invalid level")
	}
	v, _ = env.Config.Get(logstore.LogLevelKey)
	require.Equal(t, []byte{1}, v)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Store.Append([]byte(strings.Repeat("x", 1000))))
	out, err := run(t, env, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Sectors: 1 of 4 in use\n")
	require.Contains(t, out, "Used: 1006 B of 12 KiB")
	require.Contains(t, out, "Log level: inf\n")

	out, err = run(t, env, "status", "--json")
	require.NoError(t, err)
	var st status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, int64(1006), st.UsedBytes)
	require.Equal(t, 4, st.Sectors)
	require.True(t, strings.Contains(out, "\n  \"sectors\": 4,"), out)

	_, err = run(t, env, "status", "--xml")
	require.True(t, errors.Is(err, ErrUsage))
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Levels.Set(log.LevelDbg)
	require.NoError(t, err)
	out, err := run(t, env, "config", "list")
	require.NoError(t, err)
	require.Contains(t, out, "log_level: 04 (stored)")

	out, err = run(t, env, "config", "reset_config")
	require.NoError(t, err)
	require.Contains(t, out, "reset completed")
	require.False(t, env.Config.IsSet(logstore.LogLevelKey))

	_, err = run(t, env, "config", "bogus")
	require.True(t, errors.Is(err, ErrUsage))
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)
	_, err := run(t, env)
	require.True(t, errors.Is(err, ErrUsage))
	_, err = run(t, env, "nope")
	require.True(t, errors.Is(err, ErrUnknownCommand))
	_, err = run(t, env, "set_log_level")
	require.True(t, errors.Is(err, ErrUsage))
	_, err = run(t, env, "clear", "now")
	require.True(t, errors.Is(err, ErrUsage))

	out, err := run(t, env, "help")
	require.NoError(t, err)
	require.Contains(t, out, "  set_log_level\n    Set runtime log level")
}
