package logstore

import (
	"fmt"

	"github.com/kjk/flashlog/log"
)

// LogLevelKey is the config key under which the runtime level is persisted
const LogLevelKey = "log_level"

// ConfigStore persists small values by key. config.Manager implements it.
type ConfigStore interface {
	Get(key string) ([]byte, error)
	Set(key string, v []byte) error
}

// LevelController owns the runtime log level of all sources in a registry.
// The level is persisted as a single byte and is never allowed to go
// below Floor, so errors are always logged.
type LevelController struct {
	Config  ConfigStore
	Sources *log.Registry
	Key     string
	// used when nothing valid is persisted
	Default log.Level
	Floor   log.Level
	Log     *log.Source
}

// NewLevelController returns a controller with default level INF and
// floor ERR. If sources is nil, log.Default is used.
func NewLevelController(cfg ConfigStore, sources *log.Registry) *LevelController {
	if sources == nil {
		sources = log.Default
	}
	return &LevelController{
		Config:  cfg,
		Sources: sources,
		Key:     LogLevelKey,
		Default: log.LevelInf,
		Floor:   log.LevelErr,
		Log:     sources.Register(SourceName, log.LevelDbg),
	}
}

func (c *LevelController) persist(l log.Level) error {
	return c.Config.Set(c.Key, []byte{byte(l)})
}

// Init loads the persisted level and applies it to all sources.
// A missing or invalid value is replaced with Default, a value below
// Floor is raised to Floor. Corrected values are written back.
func (c *LevelController) Init() log.Level {
	level := c.Default
	d, err := c.Config.Get(c.Key)
	valid := err == nil && len(d) == 1 && log.Level(d[0]).Valid()
	if valid {
		level = log.Level(d[0])
	} else {
		if err = c.persist(level); err != nil {
			c.Log.Errf("failed to save default log level: %v", err)
		}
	}

	if level < c.Floor {
		level = c.Floor
		c.Log.Wrnf("persisted log level is below minimum, clamping to %s", level)
		if err = c.persist(level); err != nil {
			c.Log.Errf("failed to save log level: %v", err)
		}
	}

	n := c.Sources.SetLevel(level)
	c.Log.Inff("log level initialized: %s (applied to %d/%d modules)", level, n, len(c.Sources.Sources()))
	return level
}

// Set applies level to all sources and persists it. Levels below Floor
// are raised to Floor; the returned level is the one that was applied.
// When persisting fails the level is still applied and ErrIO is returned.
func (c *LevelController) Set(level log.Level) (log.Level, error) {
	if !level.Valid() {
		c.Log.Errf("invalid log level: %d, valid levels: %d=ERR, %d=WRN, %d=INF, %d=DBG",
			level, log.LevelErr, log.LevelWrn, log.LevelInf, log.LevelDbg)
		return level, fmt.Errorf("%w: log level %d", ErrInvalidArgument, level)
	}
	applied := max(level, c.Floor)
	c.Sources.SetLevel(applied)

	if err := c.persist(applied); err != nil {
		c.Log.Errf("failed to save log level to config: %v", err)
		return applied, ioErr(err)
	}
	if applied != level {
		c.Log.Wrnf("requested level %s clamped to minimum runtime level %s", level, applied)
	}
	c.Log.Inff("log level set to %s (%d)", applied, applied)
	return applied, nil
}
