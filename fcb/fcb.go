// Package fcb implements a flash circular buffer: a sequence of
// fixed-size sectors used as a ring of length-prefixed entries.
//
// Writing an entry is a two step process. Append reserves space and writes
// the length, the caller writes the data at Entry.DataOff() directly to the
// flash area and AppendFinish seals the entry with a checksum. Entries that
// were never sealed are invisible to GetNext.
//
// When the ring is full Append returns ErrNoSpace and the caller decides
// whether to Rotate (erase the oldest sector) or give up.
//
// FCB is not safe for concurrent use.
package fcb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kjk/flashlog/flash"
	"github.com/klauspost/crc32"
)

// on-flash layout:
// sector header: magic u32 | version u8 | 0xff | id u16
// entry:         len u16 | data | crc32(len + data) u32
// all integers are little endian
const (
	sectorHeaderSize = 8
	lenSize          = 2
	crcSize          = 4
	entryOverhead    = lenSize + crcSize
	formatVersion    = 1
	erasedLen        = 0xffff
	maxEntryLen      = 0xfffe
)

var (
	ErrNoSpace  = errors.New("fcb: no space")
	ErrNotFound = errors.New("fcb: no more entries")
	ErrInvalid  = errors.New("fcb: invalid argument")
	ErrCorrupt  = errors.New("fcb: corrupt entry")
)

type Config struct {
	// Magic identifies sectors that belong to this buffer
	Magic   uint32
	Sectors []flash.Sector
	// number of sectors that Append keeps free so that there's
	// always room to Rotate
	ScratchCount int
}

// Entry identifies a single record. Zero value means "before the first entry".
type Entry struct {
	// index of sector + 1, 0 means no entry
	sector int
	// id of the sector at the time the entry was found, used to detect
	// entries whose sector has since been erased
	id uint16
	// offset of the length field within the area
	off int64
	// Len is the size of the data
	Len int
}

// IsZero returns true if the entry doesn't point at any record
func (e *Entry) IsZero() bool {
	return e.sector == 0
}

// DataOff returns offset of entry data within the flash area
func (e *Entry) DataOff() int64 {
	return e.off + lenSize
}

func (e *Entry) end() int64 {
	return e.off + entryOverhead + int64(e.Len)
}

type Stats struct {
	Sectors     int
	UsedSectors int
	// bytes available for entries, including per-entry overhead
	Capacity int64
	// bytes used by entries in live sectors
	Used int64
}

type FCB struct {
	area flash.Area
	cfg  Config

	// header id of each sector, -1 if the sector is not in use
	ids       []int32
	oldest    int
	active    int
	activeID  uint16
	appendOff int64
}

// serialAfter compares sector ids with wrap-around
func serialAfter(a, b uint16) bool {
	return int16(a-b) > 0
}

// Open loads the buffer from the area, formatting it if there's
// no valid sector
func Open(area flash.Area, cfg *Config) (*FCB, error) {
	if area == nil || cfg == nil {
		return nil, fmt.Errorf("%w: must provide area and config", ErrInvalid)
	}
	n := len(cfg.Sectors)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 sectors, got %d", ErrInvalid, n)
	}
	if cfg.ScratchCount < 0 || cfg.ScratchCount >= n {
		return nil, fmt.Errorf("%w: scratch count %d with %d sectors", ErrInvalid, cfg.ScratchCount, n)
	}
	for _, s := range cfg.Sectors {
		if s.Size < sectorHeaderSize+entryOverhead+1 {
			return nil, fmt.Errorf("%w: sector of size %d is too small", ErrInvalid, s.Size)
		}
	}
	f := &FCB{
		area: area,
		cfg:  *cfg,
		ids:  make([]int32, n),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FCB) load() error {
	newest := -1
	for i := range f.cfg.Sectors {
		f.ids[i] = -1
		id, ok, err := f.readHeader(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		f.ids[i] = int32(id)
		if newest == -1 || serialAfter(id, uint16(f.ids[newest])) {
			newest = i
		}
	}
	if newest == -1 {
		return f.format(0, 0)
	}

	f.active = newest
	f.activeID = uint16(f.ids[newest])
	// the oldest sector is the one farthest behind the newest
	f.oldest = newest
	var maxAge uint16
	for i, id := range f.ids {
		if id < 0 {
			continue
		}
		age := f.activeID - uint16(id)
		if age > maxAge {
			maxAge = age
			f.oldest = i
		}
	}
	return f.findAppendOff()
}

func (f *FCB) readHeader(i int) (uint16, bool, error) {
	var hdr [sectorHeaderSize]byte
	if _, err := f.area.ReadAt(hdr[:], f.cfg.Sectors[i].Off); err != nil {
		return 0, false, err
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != f.cfg.Magic || hdr[4] != formatVersion {
		return 0, false, nil
	}
	return binary.LittleEndian.Uint16(hdr[6:8]), true, nil
}

func (f *FCB) readLen(off int64) (int, error) {
	var b [lenSize]byte
	if _, err := f.area.ReadAt(b[:], off); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(b[:])), nil
}

// findAppendOff walks the active sector to the first erased slot
func (f *FCB) findAppendOff() error {
	s := f.cfg.Sectors[f.active]
	off := s.Off + sectorHeaderSize
	for off+lenSize <= s.End() {
		n, err := f.readLen(off)
		if err != nil {
			return err
		}
		if n == erasedLen {
			break
		}
		if n == 0 || off+entryOverhead+int64(n) > s.End() {
			// garbage, don't append to this sector anymore
			off = s.End()
			break
		}
		off += entryOverhead + int64(n)
	}
	f.appendOff = off
	return nil
}

// openSector erases sector i, stamps it with id and makes it active
func (f *FCB) openSector(i int, id uint16) error {
	s := f.cfg.Sectors[i]
	if err := f.area.Erase(s.Off, s.Size); err != nil {
		return err
	}
	var hdr [sectorHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], f.cfg.Magic)
	hdr[4] = formatVersion
	hdr[5] = 0xff
	binary.LittleEndian.PutUint16(hdr[6:8], id)
	if _, err := f.area.WriteAt(hdr[:], s.Off); err != nil {
		return err
	}
	f.ids[i] = int32(id)
	f.active = i
	f.activeID = id
	f.appendOff = s.Off + sectorHeaderSize
	return nil
}

func (f *FCB) format(i int, id uint16) error {
	if err := f.openSector(i, id); err != nil {
		return err
	}
	f.oldest = i
	return nil
}

func (f *FCB) nextSector(i int) int {
	return (i + 1) % len(f.cfg.Sectors)
}

func (f *FCB) usedSectors() int {
	n := len(f.cfg.Sectors)
	return (f.active-f.oldest+n)%n + 1
}

// MaxDataLen returns the largest entry that fits in a sector
func (f *FCB) MaxDataLen() int {
	res := maxEntryLen
	for _, s := range f.cfg.Sectors {
		n := int(s.Size) - sectorHeaderSize - entryOverhead
		if n < res {
			res = n
		}
	}
	return res
}

// Append reserves space for an entry of n bytes
func (f *FCB) Append(n int) (Entry, error) {
	if n <= 0 {
		return Entry{}, fmt.Errorf("%w: entry length %d", ErrInvalid, n)
	}
	if n > f.MaxDataLen() {
		return Entry{}, fmt.Errorf("%w: entry of %d bytes doesn't fit in a sector", ErrNoSpace, n)
	}
	need := int64(n) + entryOverhead
	s := f.cfg.Sectors[f.active]
	if f.appendOff+need > s.End() {
		free := len(f.cfg.Sectors) - f.usedSectors()
		if free <= f.cfg.ScratchCount {
			return Entry{}, ErrNoSpace
		}
		if err := f.openSector(f.nextSector(f.active), f.activeID+1); err != nil {
			return Entry{}, err
		}
		s = f.cfg.Sectors[f.active]
	}

	var b [lenSize]byte
	binary.LittleEndian.PutUint16(b[:], uint16(n))
	if _, err := f.area.WriteAt(b[:], f.appendOff); err != nil {
		// we don't know what's in flash now, so stop using this sector
		f.appendOff = s.End()
		return Entry{}, err
	}
	e := Entry{
		sector: f.active + 1,
		id:     f.activeID,
		off:    f.appendOff,
		Len:    n,
	}
	f.appendOff += need
	return e, nil
}

// AppendFinish seals an entry returned by Append after its data was written
func (f *FCB) AppendFinish(e *Entry) error {
	if e == nil || e.IsZero() {
		return ErrInvalid
	}
	buf := make([]byte, lenSize+e.Len)
	if _, err := f.area.ReadAt(buf, e.off); err != nil {
		return err
	}
	if int(binary.LittleEndian.Uint16(buf)) != e.Len {
		return fmt.Errorf("%w: length at offset %d doesn't match", ErrCorrupt, e.off)
	}
	var c [crcSize]byte
	binary.LittleEndian.PutUint32(c[:], crc32.ChecksumIEEE(buf))
	_, err := f.area.WriteAt(c[:], e.DataOff()+int64(e.Len))
	return err
}

func (f *FCB) checkCRC(off int64, n int) (bool, error) {
	buf := make([]byte, lenSize+n+crcSize)
	if _, err := f.area.ReadAt(buf, off); err != nil {
		return false, err
	}
	got := binary.LittleEndian.Uint32(buf[lenSize+n:])
	return crc32.ChecksumIEEE(buf[:lenSize+n]) == got, nil
}

// Live returns true if e still refers to an entry in a live sector
func (f *FCB) Live(e Entry) bool {
	i := e.sector - 1
	if i < 0 || i >= len(f.ids) {
		return false
	}
	if f.ids[i] != int32(e.id) {
		return false
	}
	return i != f.active || e.off < f.appendOff
}

// GetNext advances e to the next sealed entry. A zero e (or one whose
// sector was rotated away) starts from the oldest entry.
// Returns ErrNotFound when there are no more entries.
func (f *FCB) GetNext(e *Entry) error {
	if e == nil {
		return ErrInvalid
	}
	sector := f.oldest
	off := f.cfg.Sectors[sector].Off + sectorHeaderSize
	if !e.IsZero() && f.Live(*e) {
		sector = e.sector - 1
		off = e.end()
	}
	for {
		s := f.cfg.Sectors[sector]
		if sector == f.active && off >= f.appendOff {
			return ErrNotFound
		}
		n := erasedLen
		if off+lenSize <= s.End() {
			var err error
			if n, err = f.readLen(off); err != nil {
				return err
			}
		}
		if n == erasedLen || n == 0 || off+entryOverhead+int64(n) > s.End() {
			if sector == f.active {
				return ErrNotFound
			}
			sector = f.nextSector(sector)
			off = f.cfg.Sectors[sector].Off + sectorHeaderSize
			continue
		}
		ok, err := f.checkCRC(off, n)
		if err != nil {
			return err
		}
		if ok {
			*e = Entry{
				sector: sector + 1,
				id:     uint16(f.ids[sector]),
				off:    off,
				Len:    n,
			}
			return nil
		}
		// unsealed or damaged entry
		off += entryOverhead + int64(n)
	}
}

// Rotate erases the oldest sector, dropping all of its entries
func (f *FCB) Rotate() error {
	if f.oldest == f.active {
		if err := f.openSector(f.nextSector(f.active), f.activeID+1); err != nil {
			return err
		}
	}
	s := f.cfg.Sectors[f.oldest]
	if err := f.area.Erase(s.Off, s.Size); err != nil {
		return err
	}
	f.ids[f.oldest] = -1
	f.oldest = f.nextSector(f.oldest)
	return nil
}

// Clear erases all sectors
func (f *FCB) Clear() error {
	for i, s := range f.cfg.Sectors {
		if err := f.area.Erase(s.Off, s.Size); err != nil {
			return err
		}
		f.ids[i] = -1
	}
	// new id so that entries from before Clear are never Live
	return f.format(0, f.activeID+1)
}

func (f *FCB) Stats() Stats {
	res := Stats{
		Sectors:     len(f.cfg.Sectors),
		UsedSectors: f.usedSectors(),
	}
	for i := 0; i < len(f.cfg.Sectors)-f.cfg.ScratchCount; i++ {
		res.Capacity += f.cfg.Sectors[i].Size - sectorHeaderSize
	}
	for i := f.oldest; ; i = f.nextSector(i) {
		s := f.cfg.Sectors[i]
		if i == f.active {
			res.Used += f.appendOff - s.Off - sectorHeaderSize
			break
		}
		res.Used += s.Size - sectorHeaderSize
	}
	return res
}
