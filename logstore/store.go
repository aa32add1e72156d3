package logstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjk/flashlog/fcb"
	"github.com/kjk/flashlog/flash"
	"github.com/kjk/flashlog/log"
)

const (
	DefaultSectorSize  = 4096
	DefaultMagic       = 0x1ee71065
	DefaultLockTimeout = 200 * time.Millisecond
	// how often append failures are reported
	DefaultDiagInterval = time.Second

	// name of log source used for diagnostics of the store
	SourceName = "log_storage"
)

// Floor is the sector-level circular buffer the store is built on.
// *fcb.FCB implements it.
type Floor interface {
	Append(n int) (fcb.Entry, error)
	AppendFinish(e *fcb.Entry) error
	GetNext(e *fcb.Entry) error
	Live(e fcb.Entry) bool
	Rotate() error
	Clear() error
	MaxDataLen() int
}

type statsFloor interface {
	Stats() fcb.Stats
}

type Store struct {
	// Area holds the data. Must be set.
	Area flash.Area
	// defaults to DefaultSectorSize
	SectorSize int64
	// defaults to DefaultMagic
	Magic uint32
	// sectors kept free for rotation, 0 means 1
	ScratchCount int
	// defaults to DefaultLockTimeout
	LockTimeout time.Duration
	// defaults to DefaultDiagInterval
	DiagInterval time.Duration
	// if nil, Init creates *fcb.FCB over Area
	Floor Floor
	// if nil, Init registers SourceName in log.Default
	Log *log.Source

	initMu           sync.Mutex
	ready            atomic.Bool
	guard            *guard
	cursor           cursor
	exportInProgress atomic.Bool
	lastDiag         atomic.Int64
}

// Init prepares the store. Calling it again is a no-op.
func (s *Store) Init() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	if s.Log == nil {
		s.Log = log.Register(SourceName, log.LevelDbg)
	}
	if s.Area == nil {
		return fmt.Errorf("%w: Area is not set", ErrInvalidArgument)
	}
	if s.LockTimeout <= 0 {
		s.LockTimeout = DefaultLockTimeout
	}
	if s.DiagInterval <= 0 {
		s.DiagInterval = DefaultDiagInterval
	}
	if s.Floor == nil {
		f, err := s.openFloor()
		if err != nil {
			s.Log.Errf("failed to initialize flash circular buffer: %v", err)
			return err
		}
		s.Floor = f
	}

	s.guard = newGuard(s.LockTimeout)
	s.cursor.reset()
	s.exportInProgress.Store(false)
	s.ready.Store(true)
	return nil
}

func (s *Store) openFloor() (*fcb.FCB, error) {
	if s.SectorSize == 0 {
		s.SectorSize = DefaultSectorSize
	}
	if s.Magic == 0 {
		s.Magic = DefaultMagic
	}
	if s.ScratchCount <= 0 {
		s.ScratchCount = 1
	}
	sectors, err := flash.Sectors(s.Area, s.SectorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	f, err := fcb.Open(s.Area, &fcb.Config{
		Magic:        s.Magic,
		Sectors:      sectors,
		ScratchCount: s.ScratchCount,
	})
	if err != nil {
		if errors.Is(err, fcb.ErrInvalid) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return nil, ioErr(err)
	}
	return f, nil
}

// diagf logs append failures at most once per DiagInterval, and not at
// all during export. Failed appends caused by logging would otherwise feed
// on themselves.
func (s *Store) diagf(level log.Level, format string, args ...any) {
	if s.exportInProgress.Load() {
		return
	}
	now := time.Now().UnixNano()
	last := s.lastDiag.Load()
	if last != 0 && now-last < int64(s.DiagInterval) {
		return
	}
	if !s.lastDiag.CompareAndSwap(last, now) {
		return
	}
	if level == log.LevelErr {
		s.Log.Errf(format, args...)
	} else {
		s.Log.Wrnf(format, args...)
	}
}

// Append stores data as a single record. Empty data is a no-op.
//
// When the buffer is full the oldest sector is erased and the append is
// retried once. If that fails too, the whole store is cleared and
// ErrOutOfSpace is returned.
//
// While an export is in progress Append drops data and returns nil.
func (s *Store) Append(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !s.ready.Load() {
		return ErrNotReady
	}
	if maxLen := s.Floor.MaxDataLen(); len(data) > maxLen {
		return fmt.Errorf("%w: record of %d bytes, max is %d", ErrInvalidArgument, len(data), maxLen)
	}
	if s.exportInProgress.Load() {
		return nil
	}

	if err := s.guard.lock(); err != nil {
		s.diagf(log.LevelWrn, "failed to lock store")
		return err
	}
	defer s.guard.unlock()

	e, err := s.reserve(len(data))
	if err != nil {
		return err
	}
	if _, err = s.Area.WriteAt(data, e.DataOff()); err != nil {
		s.diagf(log.LevelErr, "failed to write to flash: %v", err)
		return ioErr(err)
	}
	if err = s.Floor.AppendFinish(&e); err != nil {
		s.diagf(log.LevelErr, "failed to finalize write: %v", err)
		return ioErr(err)
	}
	return nil
}

// reserve must be called with the lock held
func (s *Store) reserve(n int) (fcb.Entry, error) {
	e, err := s.Floor.Append(n)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, fcb.ErrNoSpace) {
		s.diagf(log.LevelErr, "failed to get location to write to: %v", err)
		return e, ioErr(err)
	}

	if err = s.Floor.Rotate(); err != nil {
		s.diagf(log.LevelErr, "failed to rotate sectors: %v", err)
		return e, ioErr(err)
	}
	e, err = s.Floor.Append(n)
	if err == nil {
		return e, nil
	}

	// rotating didn't help, trade the stored logs for a working store
	s.diagf(log.LevelErr, "failed to get location to write to after rotate: %v", err)
	if errClear := s.Floor.Clear(); errClear != nil {
		s.diagf(log.LevelErr, "failed to clear: %v", errClear)
	}
	s.cursor.reset()
	return e, fmt.Errorf("%w: %w", ErrOutOfSpace, err)
}

// Clear erases all records and resets the read cursor
func (s *Store) Clear() error {
	if !s.ready.Load() {
		return ErrNotReady
	}
	if err := s.guard.lock(); err != nil {
		s.Log.Wrnf("failed to lock store")
		return err
	}
	defer s.guard.unlock()

	if err := s.Floor.Clear(); err != nil {
		s.Log.Errf("failed to clear: %v", err)
		return ioErr(err)
	}
	s.cursor.reset()
	return nil
}

// SetExportInProgress turns Append into a no-op while a full export runs
func (s *Store) SetExportInProgress(inProgress bool) {
	s.exportInProgress.Store(inProgress)
}

func (s *Store) ExportInProgress() bool {
	return s.exportInProgress.Load()
}

// Stats returns usage of the underlying buffer. Zero Stats if the floor
// doesn't report them.
func (s *Store) Stats() (fcb.Stats, error) {
	if !s.ready.Load() {
		return fcb.Stats{}, ErrNotReady
	}
	if err := s.guard.lock(); err != nil {
		return fcb.Stats{}, err
	}
	defer s.guard.unlock()
	if sf, ok := s.Floor.(statsFloor); ok {
		return sf.Stats(), nil
	}
	return fcb.Stats{}, nil
}
