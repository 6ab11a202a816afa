package divaspr

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/klauspost/compress/gzip"
)

// ArchiveFormat identifies one of the three FARC container variants.
type ArchiveFormat int

const (
	// FormatUnknownArchive is the zero value.
	FormatUnknownArchive ArchiveFormat = iota
	// FormatFARC is the full form with flags, alignment and padding controls.
	FormatFARC
	// FormatFArC is the legacy form whose payloads are always gzip compressed.
	FormatFArC
	// FormatFArc is the plain form whose payloads are stored as-is.
	FormatFArc
)

const (
	// SignatureFARC marks the full archive form.
	SignatureFARC = "FARC"
	// SignatureFArC marks the legacy archive form.
	SignatureFArC = "FArC"
	// SignatureFArc marks the plain archive form.
	SignatureFArc = "FArc"

	farcFlagCompressed = 1 << 1
	farcFlagEncrypted  = 1 << 2

	// bytes before the header size field counts from
	farcPreamble = 8
)

var gzipMagic = []byte{0x1f, 0x8b}

func (f ArchiveFormat) String() string {
	switch f {
	case FormatFARC:
		return SignatureFARC
	case FormatFArC:
		return SignatureFArC
	case FormatFArc:
		return SignatureFArc
	default:
		return "unknown"
	}
}

// EntryHeader is one row of an archive entry table.
type EntryHeader struct {
	Name           string `json:"name"`
	Offset         uint32 `json:"offset"`
	CompressedSize uint32 `json:"compressed_size"`
	Size           uint32 `json:"size"`
	Compressed     bool   `json:"compressed"`
}

// Entry is a named, decompressed archive payload.
type Entry struct {
	Name string
	Data []byte
}

// EntryError records an entry that failed to extract.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %q: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Archive is a parsed FARC container held in memory.
type Archive struct {
	data []byte

	Headers    []EntryHeader
	Format     ArchiveFormat
	HeaderSize uint32
	Flags      uint32
	Alignment  uint32
}

// IsArchive reports whether data starts with a known archive signature.
func IsArchive(data []byte) bool {
	return len(data) >= 4 && archiveFormatOf(data[:4]) != FormatUnknownArchive
}

func archiveFormatOf(sig []byte) ArchiveFormat {
	switch string(sig) {
	case SignatureFARC:
		return FormatFARC
	case SignatureFArC:
		return FormatFArC
	case SignatureFArc:
		return FormatFArc
	default:
		return FormatUnknownArchive
	}
}

// OpenArchive reads and parses an archive file.
func OpenArchive(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpenFile, path, err)
	}

	return ParseArchive(data)
}

// ParseArchive parses the header and entry table of an in-memory archive.
// Payloads are not touched until Extract.
func ParseArchive(data []byte) (*Archive, error) {
	if len(data) < farcPreamble {
		return nil, fmt.Errorf("%w: %d bytes", ErrArchiveHeader, len(data))
	}

	a := &Archive{data: data, Format: archiveFormatOf(data[:4])}
	if a.Format == FormatUnknownArchive {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignature, data[:4])
	}

	// FARC headers are big endian in every variant.
	c := NewCursor(data, binary.BigEndian)
	if err := c.SeekTo(4); err != nil {
		return nil, err
	}
	size, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveHeader, err)
	}
	end := uint64(size) + farcPreamble
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: header size %d exceeds archive size %d", ErrArchiveHeader, end, len(data))
	}
	a.HeaderSize = uint32(end)

	switch a.Format {
	case FormatFARC:
		err = a.parseFull(c)
	case FormatFArC:
		err = a.parseLegacy(c)
	case FormatFArc:
		err = a.parsePlain(c)
	}
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("archive %s: %d entries, alignment %d", a.Format, len(a.Headers), a.Alignment)

	return a, nil
}

// parseFull reads the FARC header tail and entry table.
func (a *Archive) parseFull(c *Cursor) error {
	var hdr [5]uint32 // flags, padding, alignment, entry padding, header padding
	for i := range hdr {
		v, err := c.ReadU32()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArchiveHeader, err)
		}
		hdr[i] = v
	}
	a.Flags, a.Alignment = hdr[0], hdr[2]
	entryPadding, headerPadding := hdr[3], hdr[4]

	if a.Flags&farcFlagEncrypted != 0 {
		return fmt.Errorf("%w: flags 0x%08x", ErrEncryptedArchive, a.Flags)
	}
	if err := c.Skip(int(headerPadding)); err != nil {
		return fmt.Errorf("%w: header padding %d: %v", ErrArchiveHeader, headerPadding, err)
	}

	compressed := a.Flags&farcFlagCompressed != 0
	for uint32(c.Pos()) < a.HeaderSize {
		h, err := readEntryRow(c, true)
		if err != nil {
			return err
		}
		if err := c.Skip(int(entryPadding)); err != nil {
			return fmt.Errorf("%w: entry padding %d: %v", ErrEntryTable, entryPadding, err)
		}
		h.Compressed = compressed && h.CompressedSize != h.Size
		a.Headers = append(a.Headers, h)
	}

	return nil
}

// parseLegacy reads the FArC entry table. Every payload is gzip data.
func (a *Archive) parseLegacy(c *Cursor) error {
	alignment, err := c.ReadU32()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveHeader, err)
	}
	a.Alignment = alignment

	for uint32(c.Pos()) < a.HeaderSize {
		h, err := readEntryRow(c, true)
		if err != nil {
			return err
		}
		h.Compressed = true
		a.Headers = append(a.Headers, h)
	}

	return nil
}

// parsePlain reads the FArc entry table of stored payloads.
func (a *Archive) parsePlain(c *Cursor) error {
	alignment, err := c.ReadU32()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveHeader, err)
	}
	a.Alignment = alignment

	for uint32(c.Pos()) < a.HeaderSize {
		h, err := readEntryRow(c, false)
		if err != nil {
			return err
		}
		a.Headers = append(a.Headers, h)
	}

	return nil
}

// readEntryRow reads name, offset and size fields of one entry.
// withSize selects the four-field row with a separate uncompressed size.
func readEntryRow(c *Cursor, withSize bool) (EntryHeader, error) {
	row := c.Pos()
	name, err := c.ReadCString()
	if err != nil {
		return EntryHeader{}, fmt.Errorf("%w: name at %d: %v", ErrEntryTable, row, err)
	}

	h := EntryHeader{Name: name}
	if h.Offset, err = c.ReadU32(); err != nil {
		return h, fmt.Errorf("%w: %q offset: %v", ErrEntryTable, name, err)
	}
	if h.CompressedSize, err = c.ReadU32(); err != nil {
		return h, fmt.Errorf("%w: %q size: %v", ErrEntryTable, name, err)
	}
	h.Size = h.CompressedSize
	if withSize {
		if h.Size, err = c.ReadU32(); err != nil {
			return h, fmt.Errorf("%w: %q uncompressed size: %v", ErrEntryTable, name, err)
		}
	}

	return h, nil
}

// Find returns the first entry header with the given name.
func (a *Archive) Find(name string) (EntryHeader, bool) {
	for _, h := range a.Headers {
		if h.Name == name {
			return h, true
		}
	}

	return EntryHeader{}, false
}

// Open returns the decompressed payload of the named entry.
func (a *Archive) Open(name string) (Entry, error) {
	h, ok := a.Find(name)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}

	return a.Extract(h)
}

// Extract returns the decompressed payload of one entry.
func (a *Archive) Extract(h EntryHeader) (Entry, error) {
	end := uint64(h.Offset) + uint64(h.CompressedSize)
	if end > uint64(len(a.data)) {
		return Entry{}, fmt.Errorf("%w: %q [%d, %d) of %d", ErrEntryRange, h.Name, h.Offset, end, len(a.data))
	}
	raw := a.data[h.Offset:end]

	if !h.Compressed {
		out := make([]byte, len(raw))
		copy(out, raw)
		return Entry{Name: h.Name, Data: out}, nil
	}

	// Legacy archives also carry stored payloads, marked by a zero or equal size.
	if a.Format == FormatFArC && !bytes.HasPrefix(raw, gzipMagic) && (h.Size == 0 || h.Size == h.CompressedSize) {
		out := make([]byte, len(raw))
		copy(out, raw)
		return Entry{Name: h.Name, Data: out}, nil
	}

	data, err := inflate(raw, h.Size)
	if err != nil {
		return Entry{}, fmt.Errorf("%q: %w", h.Name, err)
	}

	return Entry{Name: h.Name, Data: data}, nil
}

// Entries extracts every entry. Entries that fail are skipped and reported
// in the second return value; only cancellation returns a non-nil error.
func (a *Archive) Entries(ctx context.Context) ([]Entry, []*EntryError, error) {
	entries := make([]Entry, 0, len(a.Headers))
	var failed []*EntryError

	for _, h := range a.Headers {
		if err := ctx.Err(); err != nil {
			return entries, failed, err
		}

		e, err := a.Extract(h)
		if err != nil {
			glog.Errorf("skip archive entry %q: %v", h.Name, err)
			failed = append(failed, &EntryError{Name: h.Name, Err: err})
			continue
		}
		entries = append(entries, e)
	}

	return entries, failed, nil
}

// inflate decompresses a gzip payload. size is the declared uncompressed
// size, zero when unknown.
func inflate(raw []byte, size uint32) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInflate, err)
	}
	defer func() { _ = zr.Close() }()

	var (
		buf bytes.Buffer
		src io.Reader = zr
	)
	if size > 0 {
		buf.Grow(int(size))
		// One extra byte is enough to detect an oversized stream.
		src = io.LimitReader(zr, int64(size)+1)
	}
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInflate, err)
	}
	switch {
	case size > 0 && uint64(buf.Len()) > uint64(size):
		return nil, fmt.Errorf("%w: expected %d, stream is longer", ErrEntrySizeMismatch, size)
	case size > 0 && uint64(buf.Len()) != uint64(size):
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEntrySizeMismatch, size, buf.Len())
	}

	return buf.Bytes(), nil
}
