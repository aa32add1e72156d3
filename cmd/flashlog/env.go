package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kjk/flashlog/config"
	"github.com/kjk/flashlog/flash"
	"github.com/kjk/flashlog/log"
	"github.com/kjk/flashlog/logstore"
	"github.com/kjk/flashlog/shell"
)

const (
	defaultFlashSize = 64 * 1024
)

// storeFlags are shared by all commands that open the store
type storeFlags struct {
	flashPath  string
	flashSize  int64
	sectorSize int64
	configPath string
	dailyDir   string
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.flashPath, "flash", "flash.bin", "File emulating the flash partition, created if missing.")
	fs.Int64Var(&f.flashSize, "size", defaultFlashSize, "Size of the flash partition in bytes.")
	fs.Int64Var(&f.sectorSize, "sector-size", logstore.DefaultSectorSize, "Flash sector size in bytes.")
	fs.StringVar(&f.configPath, "config", "config.txt", "Configuration journal.")
	fs.StringVar(&f.dailyDir, "daily-dir", "", "If set, also write logs to daily files in this directory.")
}

func configKeys() []config.Key {
	return []config.Key{
		{Name: logstore.LogLevelKey, Size: 1, Default: []byte{byte(log.LevelInf)}, Resettable: true},
	}
}

type env struct {
	*shell.Env
	area  *flash.File
	daily *log.WriteDaily
}

// open wires flash, store, config, log levels and the flash log backend
func (f *storeFlags) open() (*env, error) {
	area, err := flash.OpenFile(f.flashPath, f.flashSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash file '%s': %w", f.flashPath, err)
	}
	store := &logstore.Store{
		Area:       area,
		SectorSize: f.sectorSize,
	}
	if err = store.Init(); err != nil {
		area.Close()
		return nil, err
	}

	cfg := &config.Manager{
		Path: f.configPath,
		Keys: configKeys(),
	}
	if err = config.Open(cfg); err != nil {
		area.Close()
		return nil, err
	}
	levels := logstore.NewLevelController(cfg, log.Default)
	levels.Init()

	backend := logstore.NewBackend(store, 0)
	log.Default.AddSink(backend)
	res := &env{
		Env: &shell.Env{
			Store:   store,
			Levels:  levels,
			Backend: backend,
			Config:  cfg,
		},
		area: area,
	}
	if f.dailyDir != "" {
		if err = os.MkdirAll(f.dailyDir, 0755); err != nil {
			res.close()
			return nil, err
		}
		res.daily = log.NewWriteDaily(f.dailyDir)
		log.Default.AddSink(res.daily)
	}
	return res, nil
}

func (e *env) close() {
	log.Default.RemoveSink(e.Backend)
	e.Backend.Close()
	if e.daily != nil {
		log.Default.RemoveSink(e.daily)
		_ = e.daily.Close()
	}
	_ = e.area.Close()
}
