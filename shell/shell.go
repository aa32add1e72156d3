// Package shell implements the log_storage commands used to inspect
// stored logs and change log levels.
package shell

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kjk/flashlog/config"
	"github.com/kjk/flashlog/log"
	"github.com/kjk/flashlog/logstore"
)

var (
	ErrUsage          = errors.New("shell: invalid usage")
	ErrUnknownCommand = errors.New("shell: unknown command")
)

// Env is what commands operate on. Only Store is required.
type Env struct {
	Store   *logstore.Store
	Levels  *logstore.LevelController
	Backend *logstore.Backend
	Config  *config.Manager
}

type command struct {
	help string
	// number of arguments after command name
	minArgs int
	maxArgs int
	fn      func(env *Env, args []string, w io.Writer) error
}

var commands map[string]*command

func init() {
	commands = map[string]*command{
		"export_status": {
			help: "Print log export status.",
			fn:   cmdExportStatus,
		},
		"clear": {
			help: "Erase all stored log entries.",
			fn:   cmdClear,
		},
		"export": {
			help: "Stream stored log entries as plain text.",
			fn:   cmdExport,
		},
		"list_log_levels": {
			help: "List current module log levels and available severities.",
			fn:   cmdListLevels,
		},
		"set_log_level": {
			help:    "Set runtime log level for all modules (minimum 'err').\nusage: set_log_level <err|wrn|inf|dbg|1-4>",
			minArgs: 1,
			maxArgs: 1,
			fn:      cmdSetLevel,
		},
		"status": {
			help:    "Print storage usage.\nusage: status [--json]",
			maxArgs: 1,
			fn:      cmdStatus,
		},
		"config": {
			help:    "Configuration values.\nusage: config <list|reset_nvs|reset_config>",
			minArgs: 1,
			maxArgs: 1,
			fn:      cmdConfig,
		},
		"help": {
			help: "Show this help.",
			fn:   cmdHelp,
		},
	}
}

// Run executes a single command, args[0] being the command name.
// Output goes to w. On failure the message is also written to w.
func Run(env *Env, args []string, w io.Writer) error {
	if len(args) == 0 {
		_ = cmdHelp(env, nil, w)
		return ErrUsage
	}
	name := args[0]
	cmd := commands[name]
	if cmd == nil {
		fmt.Fprintf(w, "Unknown command '%s'. Use 'help' to list commands.\n", name)
		return fmt.Errorf("%w: '%s'", ErrUnknownCommand, name)
	}
	args = args[1:]
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		fmt.Fprintf(w, "Wrong number of arguments for '%s'.\n%s\n", name, cmd.help)
		return ErrUsage
	}
	return cmd.fn(env, args, w)
}

func cmdHelp(env *Env, args []string, w io.Writer) error {
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "Log storage commands:\n")
	for _, name := range names {
		help := strings.ReplaceAll(commands[name].help, "\n", "\n    ")
		fmt.Fprintf(w, "  %s\n    %s\n", name, help)
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func cmdExportStatus(env *Env, args []string, w io.Writer) error {
	fmt.Fprintf(w, "Log export in progress: %s\n", boolStr(env.Store.ExportInProgress()))
	return nil
}

func cmdClear(env *Env, args []string, w io.Writer) error {
	fmt.Fprintf(w, "Clearing stored logs...\n")
	if err := env.Store.Clear(); err != nil {
		fmt.Fprintf(w, "Failed to clear logs: %s\n", err)
		return err
	}
	fmt.Fprintf(w, "Stored logs cleared.\n")
	return nil
}

func cmdExport(env *Env, args []string, w io.Writer) error {
	n, err := env.Store.Export(w)
	if err != nil {
		fmt.Fprintf(w, "\nFailed to export logs: %s\n", err)
		return err
	}
	if n == 0 {
		fmt.Fprintf(w, "No stored log entries.\n")
	}
	return nil
}

func levelName(l log.Level) string {
	return strings.ToLower(l.String())
}

func registry(env *Env) *log.Registry {
	if env.Levels != nil && env.Levels.Sources != nil {
		return env.Levels.Sources
	}
	return log.Default
}

func cmdListLevels(env *Env, args []string, w io.Writer) error {
	fmt.Fprintf(w, "Available severity levels:\n")
	for _, name := range log.LevelNames() {
		fmt.Fprintf(w, "  %s\n", name)
	}

	fmt.Fprintf(w, "\nModule log level summary:\n")
	sources := registry(env).Sources()
	fmt.Fprintf(w, "Module Log Levels (%d modules):\n", len(sources))
	fmt.Fprintf(w, "%-24s %-8s %-8s\n", "Module", "Runtime", "Compiled")
	fmt.Fprintf(w, "%-24s %-8s %-8s\n", "------", "-------", "--------")
	for _, s := range sources {
		fmt.Fprintf(w, "%-24s %-8s %-8s\n", s.Name(), levelName(s.Level()), levelName(s.CompiledLevel()))
	}
	fmt.Fprintf(w, "\nUse 'log_storage set_log_level <level>' to change runtime levels for all modules.\n")
	return nil
}

// parseLevel accepts any level name but only numbers from floor up
func parseLevel(s string, floor log.Level) (log.Level, bool) {
	for i, name := range log.LevelNames() {
		if strings.EqualFold(s, name) {
			return log.Level(i), true
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(floor) || n > int(log.MaxLevel) {
		return 0, false
	}
	return log.Level(n), true
}

func cmdSetLevel(env *Env, args []string, w io.Writer) error {
	if env.Levels == nil {
		fmt.Fprintf(w, "Log levels are not configured.\n")
		return ErrUsage
	}
	level, ok := parseLevel(args[0], env.Levels.Floor)
	if !ok {
		fmt.Fprintf(w, "Invalid level '%s'. Use one of: err, wrn, inf, dbg, or %d-%d.\n", args[0], env.Levels.Floor, log.MaxLevel)
		return fmt.Errorf("%w: level '%s'", ErrUsage, args[0])
	}
	applied, err := env.Levels.Set(level)
	if err != nil {
		fmt.Fprintf(w, "Failed to set log level: %s\n", err)
		return err
	}
	fmt.Fprintf(w, "Log level set to %s (%d).\n", levelName(applied), applied)
	return nil
}

func cmdConfig(env *Env, args []string, w io.Writer) error {
	if env.Config == nil {
		fmt.Fprintf(w, "Configuration is not available.\n")
		return ErrUsage
	}
	var err error
	switch args[0] {
	case "list":
		env.Config.List(w)
		return nil
	case "reset_nvs":
		fmt.Fprintf(w, "Resetting all NVS entries...\n")
		if err = env.Config.ResetAll(); err == nil {
			fmt.Fprintf(w, "NVS reset completed\n")
		}
	case "reset_config":
		fmt.Fprintf(w, "Resetting resettable config entries...\n")
		if err = env.Config.ResetConfigs(); err == nil {
			fmt.Fprintf(w, "Resettable config entries reset completed\n")
		}
	default:
		fmt.Fprintf(w, "Unknown config command '%s'.\n", args[0])
		return ErrUsage
	}
	if err != nil {
		fmt.Fprintf(w, "Failed: %s\n", err)
	}
	return err
}
