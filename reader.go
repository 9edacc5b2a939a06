// Copyright 2025 The utzip authors.
//
// Archive reader: locating the end-of-central-directory (possibly
// ZIP64), enumerating entries, and random-access raw-copy, per
// spec.md §4.4.

package utzip

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// VolumeOpener opens a split-archive volume by its 0-based disk index,
// returning a ReaderAt and the volume's total size. Implementations may
// lazily open files on demand (spec.md §4.4: "the reader must open
// successive split volumes ... on demand").
type VolumeOpener interface {
	Open(disk uint32) (io.ReaderAt, int64, error)
}

// fileVolumeOpener opens split volumes named basename.z01, basename.z02,
// ..., with the final volume at finalPath (spec.md §6).
type fileVolumeOpener struct {
	finalPath  string
	lastDisk   uint32
	namer      func(index uint32, last bool) string
}

func newFileVolumeOpener(finalPath string, lastDisk uint32) *fileVolumeOpener {
	return &fileVolumeOpener{finalPath: finalPath, lastDisk: lastDisk, namer: SplitNamer(finalPath)}
}

func (o *fileVolumeOpener) Open(disk uint32) (io.ReaderAt, int64, error) {
	path := o.namer(disk, disk == o.lastDisk)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

type volumeHandle struct {
	r    io.ReaderAt
	size int64
}

// volumeSet lazily opens and caches volumes, closing them all together.
type volumeSet struct {
	opener  VolumeOpener
	handles map[uint32]volumeHandle
	closers []io.Closer
}

func newVolumeSet(opener VolumeOpener) *volumeSet {
	return &volumeSet{opener: opener, handles: map[uint32]volumeHandle{}}
}

func (vs *volumeSet) get(disk uint32) (volumeHandle, error) {
	if h, ok := vs.handles[disk]; ok {
		return h, nil
	}
	r, size, err := vs.opener.Open(disk)
	if err != nil {
		return volumeHandle{}, fmt.Errorf("utzip: opening disk %d: %w", disk, err)
	}
	if c, ok := r.(io.Closer); ok {
		vs.closers = append(vs.closers, c)
	}
	h := volumeHandle{r: r, size: size}
	vs.handles[disk] = h
	return h, nil
}

func (vs *volumeSet) Close() error {
	var first error
	for _, c := range vs.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Reader parses an existing ZIP archive's central directory and
// provides random access to each entry's raw bytes (spec.md §4.4). It
// owns the input handle(s) and the parsed central-directory index,
// exclusively per spec.md §5.
type Reader struct {
	cfg     Config
	volumes *volumeSet

	Entries    []*FileHeader
	Comment    string
	EOCDDisk   uint32
	CDDisk     uint32
	CDOffset   uint64
	CDSize     uint64
}

// OpenReader opens the archive at path (its final/only volume) and
// parses its central directory, opening additional split volumes named
// alongside path on demand.
func OpenReader(path string, cfg Config) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return newReader(f, info.Size(), path, cfg)
}

func newReader(last io.ReaderAt, lastSize int64, finalPath string, cfg Config) (*Reader, error) {
	eocd, eocdOffset, err := locateEOCD(last, lastSize)
	if err != nil {
		if lastCloser, ok := last.(io.Closer); ok {
			lastCloser.Close()
		}
		return nil, err
	}

	cdDisk := uint32(eocd.cdDisk)
	cdOffset := uint64(eocd.cdOffset)
	cdSize := uint64(eocd.cdSize)
	numEntries := uint64(eocd.numEntries)
	eocdDisk := uint32(eocd.thisDisk)

	if z64loc, ok := locateZip64Locator(last, eocdOffset); ok {
		z64, err := readZip64EOCD(last, int64(z64loc.zip64EOCDOffset))
		if err != nil {
			if lastCloser, ok := last.(io.Closer); ok {
				lastCloser.Close()
			}
			return nil, fmt.Errorf("%w: zip64 end record: %v", errInvalidArchive, err)
		}
		cdDisk = z64.cdDisk
		cdOffset = z64.cdOffset
		cdSize = z64.cdSize
		numEntries = z64.numEntries
		eocdDisk = z64.thisDisk
	}

	opener := newFileVolumeOpener(finalPath, eocdDisk)
	vs := newVolumeSet(opener)
	vs.handles[eocdDisk] = volumeHandle{r: last, size: lastSize}
	if lastCloser, ok := last.(io.Closer); ok {
		vs.closers = append(vs.closers, lastCloser)
	}

	cdHandle, err := vs.get(cdDisk)
	if err != nil {
		vs.Close()
		return nil, err
	}
	cdBytes := make([]byte, cdSize)
	if _, err := io.ReadFull(io.NewSectionReader(cdHandle.r, int64(cdOffset), int64(cdSize)), cdBytes); err != nil {
		vs.Close()
		return nil, fmt.Errorf("%w: reading central directory: %v", errInvalidArchive, err)
	}

	entries, err := parseCentralDirectory(cdBytes, numEntries, cfg)
	if err != nil {
		vs.Close()
		return nil, err
	}

	return &Reader{
		cfg:      cfg,
		volumes:  vs,
		Entries:  entries,
		Comment:  eocd.comment,
		EOCDDisk: eocdDisk,
		CDDisk:   cdDisk,
		CDOffset: cdOffset,
		CDSize:   cdSize,
	}, nil
}

// Close releases every opened volume.
func (r *Reader) Close() error { return r.volumes.Close() }

var errInvalidArchive = errors.New("utzip: invalid archive")

type eocdRecord struct {
	thisDisk   uint16
	cdDisk     uint16
	numEntries uint16
	cdSize     uint32
	cdOffset   uint32
	comment    string
}

// locateEOCD scans the last eocdSearchWindow bytes of r for the EOCD
// signature, per spec.md §4.4.
func locateEOCD(r io.ReaderAt, size int64) (eocdRecord, int64, error) {
	window := int64(eocdSearchWindow)
	if window > size {
		window = size
	}
	buf := make([]byte, window)
	if _, err := r.ReadAt(buf, size-window); err != nil && err != io.EOF {
		return eocdRecord{}, 0, fmt.Errorf("%w: %v", errInvalidArchive, err)
	}
	sig := []byte{0x50, 0x4b, 0x05, 0x06}
	idx := bytes.LastIndex(buf, sig)
	if idx < 0 {
		return eocdRecord{}, 0, fmt.Errorf("%w: end of central directory not found", errInvalidArchive)
	}
	offset := size - window + int64(idx)
	if idx+directoryEndLen > len(buf) {
		more := make([]byte, directoryEndLen)
		if _, err := r.ReadAt(more, offset); err != nil && err != io.EOF {
			return eocdRecord{}, 0, err
		}
		buf = append(buf[:idx], more...)
		idx = 0
	}
	b := readBuf(buf[idx+4:])
	var rec eocdRecord
	rec.thisDisk = b.uint16()
	rec.cdDisk = b.uint16()
	_ = b.uint16() // entries on this disk
	rec.numEntries = b.uint16()
	rec.cdSize = b.uint32()
	rec.cdOffset = b.uint32()
	commentLen := int(b.uint16())
	commentStart := idx + directoryEndLen
	if commentStart+commentLen <= len(buf) {
		rec.comment = string(buf[commentStart : commentStart+commentLen])
	}
	return rec, offset, nil
}

type zip64Locator struct {
	zip64EOCDOffset uint64
}

func locateZip64Locator(r io.ReaderAt, eocdOffset int64) (zip64Locator, bool) {
	locOffset := eocdOffset - directory64LocLen
	if locOffset < 0 {
		return zip64Locator{}, false
	}
	buf := make([]byte, directory64LocLen)
	if _, err := r.ReadAt(buf, locOffset); err != nil {
		return zip64Locator{}, false
	}
	b := readBuf(buf)
	if b.uint32() != directory64LocSignature {
		return zip64Locator{}, false
	}
	_ = b.uint32() // disk with start of zip64 EOCD
	offset := b.uint64()
	return zip64Locator{zip64EOCDOffset: offset}, true
}

type zip64EOCD struct {
	thisDisk   uint32
	cdDisk     uint32
	numEntries uint64
	cdSize     uint64
	cdOffset   uint64
}

func readZip64EOCD(r io.ReaderAt, offset int64) (zip64EOCD, error) {
	buf := make([]byte, directory64EndLen)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return zip64EOCD{}, err
	}
	b := readBuf(buf)
	if b.uint32() != directory64EndSignature {
		return zip64EOCD{}, fmt.Errorf("bad zip64 end of central directory signature")
	}
	_ = b.uint64() // record size
	_ = b.uint16() // version made by
	_ = b.uint16() // version needed
	thisDisk := b.uint32()
	cdDisk := b.uint32()
	_ = b.uint64() // entries on this disk
	numEntries := b.uint64()
	cdSize := b.uint64()
	cdOffset := b.uint64()
	return zip64EOCD{thisDisk: thisDisk, cdDisk: cdDisk, numEntries: numEntries, cdSize: cdSize, cdOffset: cdOffset}, nil
}

// parseCentralDirectory decodes numEntries consecutive central
// directory headers from cd, resolving ZIP64 promotion per spec.md §3.
func parseCentralDirectory(cd []byte, numEntries uint64, cfg Config) ([]*FileHeader, error) {
	entries := make([]*FileHeader, 0, numEntries)
	b := readBuf(cd)
	for i := uint64(0); i < numEntries; i++ {
		if len(b) < directoryHeaderLen {
			return nil, fmt.Errorf("%w: truncated central directory entry %d", errInvalidArchive, i)
		}
		if b.uint32() != directoryHeaderSignature {
			return nil, fmt.Errorf("%w: bad central directory signature at entry %d", errInvalidArchive, i)
		}
		fh := &FileHeader{}
		fh.CreatorVersion = b.uint16()
		fh.ReaderVersion = b.uint16()
		fh.Flags = b.uint16()
		fh.Method = b.uint16()
		modTime := b.uint16()
		modDate := b.uint16()
		fh.CRC32 = b.uint32()
		compressedSize := uint64(b.uint32())
		uncompressedSize := uint64(b.uint32())
		nameLen := int(b.uint16())
		extraLen := int(b.uint16())
		commentLen := int(b.uint16())
		diskStart := uint32(b.uint16())
		_ = b.uint16() // internal attributes
		fh.ExternalAttrs = b.uint32()
		localOffset := uint64(b.uint32())

		if nameLen > len(b) {
			return nil, fmt.Errorf("%w: entry %d name exceeds central directory", errInvalidArchive, i)
		}
		rawName := []byte(b.sub(nameLen))
		fh.Name = string(rawName)
		if extraLen > len(b) {
			return nil, fmt.Errorf("%w: entry %d extra field exceeds central directory", errInvalidArchive, i)
		}
		fh.Extra = append([]byte{}, b.sub(extraLen)...)
		if commentLen > len(b) {
			return nil, fmt.Errorf("%w: entry %d comment exceeds central directory", errInvalidArchive, i)
		}
		fh.Comment = string(b.sub(commentLen))

		needUncompressed := uncompressedSize == uint32max
		needCompressed := compressedSize == uint32max
		needOffset := localOffset == uint32max
		needDisk := diskStart == uint16max
		if z64, ok := findExtra(fh.Extra, zip64ExtraID); ok && (needUncompressed || needCompressed || needOffset || needDisk) {
			f := decodeZip64Extra(z64, needUncompressed, needCompressed, needOffset, needDisk)
			if f.uncompressedSize != nil {
				uncompressedSize = *f.uncompressedSize
			}
			if f.compressedSize != nil {
				compressedSize = *f.compressedSize
			}
			if f.localOffset != nil {
				localOffset = *f.localOffset
			}
			if f.diskStart != nil {
				diskStart = *f.diskStart
			}
		}

		fh.CompressedSize64 = compressedSize
		fh.UncompressedSize64 = uncompressedSize
		fh.LocalHeaderOffset = localOffset
		fh.Disk = diskStart
		fh.Encrypted = fh.Flags&flagEncrypted != 0

		if ut, ok := findExtra(fh.Extra, extTimeExtraID); ok {
			if t, ok := decodeExtendedTimestamp(ut); ok {
				fh.Modified = t
			}
		}
		if fh.Modified.IsZero() {
			fh.Modified = msDosTimeToTime(cfg.location(), modDate, modTime)
		}
		if up, ok := findExtra(fh.Extra, unicodePathID); ok {
			if name, ok := decodeUnicodePathExtra(up, rawName); ok {
				fh.Name = name
			}
		}

		entries = append(entries, fh)
	}
	return entries, nil
}

// LocalHeaderInfo is what the reader learns by parsing an entry's
// actual local header, used to compute the raw-copy data span.
type LocalHeaderInfo struct {
	DataOffset int64
	// DataDescriptorLen is the size in bytes of the trailing data
	// descriptor, 0 if the entry's flags don't set bit 3.
	DataDescriptorLen int64
}

// readLocalHeader reads entry's local header on its disk and returns
// where the entry's data begins.
func (r *Reader) readLocalHeader(entry *FileHeader) (LocalHeaderInfo, error) {
	h, err := r.volumes.get(entry.Disk)
	if err != nil {
		return LocalHeaderInfo{}, err
	}
	buf := make([]byte, fileHeaderLen)
	if _, err := h.r.ReadAt(buf, int64(entry.LocalHeaderOffset)); err != nil {
		return LocalHeaderInfo{}, fmt.Errorf("%w: reading local header for %q: %v", errInvalidArchive, entry.Name, err)
	}
	b := readBuf(buf)
	if b.uint32() != fileHeaderSignature {
		return LocalHeaderInfo{}, fmt.Errorf("%w: bad local header signature for %q", errInvalidArchive, entry.Name)
	}
	_ = b.uint16() // version needed
	flags := b.uint16()
	_ = b.uint16() // method
	_ = b.uint16() // time
	_ = b.uint16() // date
	_ = b.uint32() // crc
	_ = b.uint32() // compressed size
	_ = b.uint32() // uncompressed size
	nameLen := int(b.uint16())
	extraLen := int(b.uint16())

	dataOffset := int64(entry.LocalHeaderOffset) + fileHeaderLen + int64(nameLen) + int64(extraLen)
	ddLen := int64(0)
	if flags&flagDataDescriptor != 0 {
		ddLen = dataDescriptorLen
		if entry.isZip64() {
			ddLen = dataDescriptor64Len
		}
	}
	return LocalHeaderInfo{DataOffset: dataOffset, DataDescriptorLen: ddLen}, nil
}

// RawCopy returns a reader over entry's full local record -- local
// header, name, extra, encryption header if any, compressed data and
// trailing data descriptor if any -- exactly as spec.md §4.4's
// Raw-copy contract requires: "yield the byte span [local-header-start,
// data-end) verbatim ... no CRC recomputation."
func (r *Reader) RawCopy(entry *FileHeader) (io.Reader, int64, error) {
	info, err := r.readLocalHeader(entry)
	if err != nil {
		return nil, 0, err
	}
	dataEnd := info.DataOffset + int64(entry.CompressedSize64) + info.DataDescriptorLen
	length := dataEnd - int64(entry.LocalHeaderOffset)
	cr := newCrossVolumeReader(r.volumes, entry.Disk, int64(entry.LocalHeaderOffset), length)
	return cr, length, nil
}

// crossVolumeReader reads length bytes starting at (disk, offset),
// transparently advancing to the next disk as each volume is
// exhausted. Split archives may place a raw-copied payload's bytes
// across more than one input volume even though no individual record
// straddled a boundary when it was written.
type crossVolumeReader struct {
	vs       *volumeSet
	disk     uint32
	offset   int64
	remaining int64
}

func newCrossVolumeReader(vs *volumeSet, disk uint32, offset int64, length int64) *crossVolumeReader {
	return &crossVolumeReader{vs: vs, disk: disk, offset: offset, remaining: length}
}

func (c *crossVolumeReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, io.EOF
	}
	h, err := c.vs.get(c.disk)
	if err != nil {
		return 0, err
	}
	avail := h.size - c.offset
	if avail <= 0 {
		c.disk++
		c.offset = 0
		return c.Read(p)
	}
	toRead := int64(len(p))
	if toRead > avail {
		toRead = avail
	}
	if toRead > c.remaining {
		toRead = c.remaining
	}
	n, err := h.r.ReadAt(p[:toRead], c.offset)
	c.offset += int64(n)
	c.remaining -= int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}
