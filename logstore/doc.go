// Package logstore persists log lines into a fixed region of flash and
// lets them be read back in chunks through a small buffer.
//
// Storage is a flash circular buffer (package fcb) made of fixed-size
// sectors. When the buffer is full, the oldest sector is erased to make
// room, so the store always keeps the most recent logs.
//
// # Basic Usage
//
//	s := &logstore.Store{
//	    Area:       flash.NewMem(32 * 4096),
//	    SectorSize: 4096,
//	}
//	if err := s.Init(); err != nil {
//	    return err
//	}
//	err := s.Append([]byte("boot ok\n"))
//
//	// read everything back, 64 bytes at a time
//	s.ResetRead()
//	buf := make([]byte, 64)
//	for {
//	    n, err := s.Fetch(buf)
//	    if errors.Is(err, logstore.ErrNotFound) {
//	        break
//	    }
//	    ...
//	}
//
// # Concurrency
//
// All operations are serialized by a single lock acquired with a timeout
// (Store.LockTimeout). When the lock can't be acquired in time the
// operation fails with ErrBusy and it's up to the caller to retry.
//
// While an export is in progress (SetExportInProgress(true)) Append
// silently drops data instead of competing for the lock. The flag is read
// without the lock and is only a hint: a line may be dropped or written
// around the moment it changes, but data is never corrupted.
//
// Only one reader is supported: Fetch uses a single cursor.
//
// # Log levels
//
// LevelController keeps the runtime level of all log sources in a
// persistent config store and never lets it go below a floor.
//
// # Logging into the store
//
// Backend is a log.Sink that queues formatted lines and appends them to
// the store from its own goroutine.
package logstore
