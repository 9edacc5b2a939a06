// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Archive writer: local headers, streamed entry data, the central
// directory and ZIP64 promotion, split-volume boundary logic, per
// spec.md §4.5.

package utzip

import (
	"fmt"
	"io"
)

var (
	errLongName      = fmt.Errorf("utzip: FileHeader.Name too long")
	errLongExtra     = fmt.Errorf("utzip: FileHeader.Extra too long")
	errDuplicateName = fmt.Errorf("utzip: duplicate entry name")
)

// ArchiveFileInfo summarizes the archive a Writer produced, per
// spec.md §3.
type ArchiveFileInfo struct {
	EntryCount             int
	CentralDirectorySize   uint64
	CentralDirectoryOffset uint64
	CentralDirectoryDisk   uint32
	Comment                string
	Volumes                []string
}

// Writer emits a conforming ZIP archive into a SplitWriter, driving the
// compression pipeline for fresh content and accepting pre-encoded raw
// entries for the CopyRaw mode-engine action (spec.md §4.5).
//
// A Writer exclusively owns its SplitWriter's output handle and the
// in-memory central-directory accumulator for the duration of one
// archive production; it is not safe for concurrent use by multiple
// goroutines.
type Writer struct {
	cfg      Config
	sv       *SplitWriter
	dir      []*FileHeader
	names    map[string]bool
	password string
	comment  string
}

// NewWriter constructs a Writer over sv. password, if non-empty, is
// applied to every entry added with FileHeader.Encrypted set (see
// SPEC_FULL.md Supplemented feature #3: one password per run, not per
// entry).
func NewWriter(sv *SplitWriter, cfg Config, password string) *Writer {
	return &Writer{cfg: cfg, sv: sv, names: map[string]bool{}, password: password}
}

// SetComment sets the archive-level comment stored verbatim at the tail
// of the end-of-central-directory record (spec.md §6).
func (w *Writer) SetComment(comment string) error {
	if len(comment) > uint16max {
		return fmt.Errorf("utzip: archive comment too long: %w", errLongExtra)
	}
	w.comment = comment
	return nil
}

func (w *Writer) claimName(name string) error {
	if w.names[name] {
		return fmt.Errorf("utzip: duplicate archive path %q: %w", name, errDuplicateName)
	}
	w.names[name] = true
	return nil
}

// AddEntry streams data through the compression pipeline (honoring
// opts.Method/Level, the Config's suffix exclusion and, for entries with
// Encrypted set, the Writer's ZipCrypto password) and appends a new local record, implementing the
// mode-engine's Add/ReCompress actions (spec.md §4.5).
func (w *Writer) AddEntry(fh *FileHeader, data io.Reader, opts PipelineOptions) error {
	if err := w.claimName(fh.Name); err != nil {
		return err
	}
	if len(fh.Name) > uint16max {
		return errLongName
	}

	prepareEntry(fh)
	if w.cfg.ForcesStore(fh.Name) {
		opts.Method = Store
	}
	if fh.IsDir() {
		opts.Method = Store
	}

	modDate, modTime := timeToMsDosTime(fh.Modified)
	opts.ModTime = modTime
	opts.HasDataDescriptor = fh.Flags&flagDataDescriptor != 0
	if fh.Encrypted {
		opts.Password = w.password
	} else {
		opts.Password = ""
	}

	headerLen := int64(fileHeaderLen + len(fh.Name) + len(fh.Extra))
	if err := w.sv.ReserveRecord(headerLen); err != nil {
		return err
	}
	fh.Disk = w.sv.Disk()
	fh.LocalHeaderOffset = uint64(w.sv.Offset())

	if err := writeLocalHeader(w.sv, fh, modDate, modTime); err != nil {
		return err
	}

	if !fh.IsDir() {
		result, err := CompressEntry(w.sv, data, opts)
		if err != nil {
			return err
		}
		fh.Method = result.Method
		fh.CRC32 = result.CRC32
		fh.UncompressedSize64 = result.UncompressedSize
		fh.CompressedSize64 = result.CompressedSize

		if fh.Flags&flagDataDescriptor != 0 {
			desc := makeDataDescriptor(fh)
			if err := w.sv.ReserveRecord(int64(len(desc))); err != nil {
				return err
			}
			if _, err := w.sv.Write(desc); err != nil {
				return err
			}
		}
	}

	w.dir = append(w.dir, fh)
	return nil
}

// CopyRawEntry appends raw, a verbatim local-record byte stream of
// length rawLen produced by Reader.RawCopy for entry, without touching
// the compression pipeline, implementing the mode-engine's CopyRaw
// action (spec.md §4.5). entry's local-offset and disk are updated to
// the new position; every other field (CRC, sizes, extra, flags) is
// preserved unchanged, including encryption state.
func (w *Writer) CopyRawEntry(entry *FileHeader, raw io.Reader, rawLen int64) error {
	if err := w.claimName(entry.Name); err != nil {
		return err
	}
	headerLen := int64(fileHeaderLen + len(entry.Name) + len(entry.Extra))
	if err := w.sv.ReserveRecord(headerLen); err != nil {
		return err
	}
	entry.Disk = w.sv.Disk()
	entry.LocalHeaderOffset = uint64(w.sv.Offset())
	if _, err := io.CopyN(w.sv, raw, rawLen); err != nil {
		return err
	}
	w.dir = append(w.dir, entry)
	return nil
}

func writeLocalHeader(w io.Writer, h *FileHeader, modDate, modTime uint16) error {
	var buf [fileHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(fileHeaderSignature))
	b.uint16(h.ReaderVersion)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(modTime)
	b.uint16(modDate)
	// CRC and both sizes are zero here whenever a data descriptor
	// follows (spec.md §4.1); directories already have them zeroed by
	// prepareEntry and never set the descriptor bit.
	b.uint32(h.CRC32)
	b.uint32(uint32(h.CompressedSize64))
	b.uint32(uint32(h.UncompressedSize64))
	b.uint16(uint16(len(h.Name)))
	b.uint16(uint16(len(h.Extra)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, h.Name); err != nil {
		return err
	}
	_, err := w.Write(h.Extra)
	return err
}

// makeDataDescriptor builds the trailer written after an entry's
// compressed data when flag bit 3 is set, per spec.md §4.1. An entry
// that needs ZIP64 (isZip64) gets the layout with 8-byte sizes, which
// is the width Reader.readLocalHeader expects for such an entry; every
// other entry gets the classic 4-byte-field layout.
func makeDataDescriptor(fh *FileHeader) []byte {
	if fh.isZip64() {
		buf := make([]byte, dataDescriptor64Len)
		b := writeBuf(buf)
		b.uint32(dataDescriptorSignature)
		b.uint32(fh.CRC32)
		b.uint64(fh.CompressedSize64)
		b.uint64(fh.UncompressedSize64)
		return buf
	}
	buf := make([]byte, dataDescriptorLen)
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(fh.CRC32)
	b.uint32(uint32(fh.CompressedSize64))
	b.uint32(uint32(fh.UncompressedSize64))
	return buf
}

// Close emits the central directory (promoting individual size/offset
// fields and, if needed, the directory-level record count/size/offset
// to ZIP64), closes the final volume, and returns an ArchiveFileInfo
// plus the ordered list of volume paths produced (spec.md §4.5, §3).
func (w *Writer) Close() (ArchiveFileInfo, error) {
	cdDisk := w.sv.Disk()
	cdOffset := uint64(w.sv.Offset())

	var cdBytesWritten int64
	for _, h := range w.dir {
		recordLen := int64(directoryHeaderLen + len(h.Name) + len(h.Extra) + len(h.Comment))
		if h.isZip64() {
			recordLen += 32 // zip64 extra record upper bound
		}
		if err := w.sv.ReserveRecord(recordLen); err != nil {
			return ArchiveFileInfo{}, err
		}
		n, err := writeCentralDirectoryHeader(w.sv, h)
		if err != nil {
			return ArchiveFileInfo{}, err
		}
		cdBytesWritten += n
	}

	cdSize := uint64(cdBytesWritten)
	records := uint64(len(w.dir))
	needZip64 := records >= uint16max || cdSize >= uint32max || cdOffset >= uint32max
	if !needZip64 {
		for _, h := range w.dir {
			if h.isZip64() {
				needZip64 = true
				break
			}
		}
	}

	if needZip64 {
		if err := writeZip64EOCD(w.sv, records, cdSize, cdOffset); err != nil {
			return ArchiveFileInfo{}, err
		}
	}

	if err := writeEOCD(w.sv, records, cdSize, cdOffset, w.comment, needZip64); err != nil {
		return ArchiveFileInfo{}, err
	}

	volumes, err := w.sv.FinishFinal()
	if err != nil {
		return ArchiveFileInfo{}, err
	}

	return ArchiveFileInfo{
		EntryCount:             len(w.dir),
		CentralDirectorySize:   cdSize,
		CentralDirectoryOffset: cdOffset,
		CentralDirectoryDisk:   cdDisk,
		Comment:                w.comment,
		Volumes:                volumes,
	}, nil
}

// writeCentralDirectoryHeader writes one entry's central-directory
// record, promoting size/offset fields that exceed the 32-bit sentinel
// to the ZIP64 extra field in canonical order, and returns the number
// of bytes written.
func writeCentralDirectoryHeader(w io.Writer, h *FileHeader) (int64, error) {
	modDate, modTime := timeToMsDosTime(h.Modified)

	needUncompressed := h.UncompressedSize64 >= uint32max
	needCompressed := h.CompressedSize64 >= uint32max
	needOffset := h.LocalHeaderOffset >= uint32max

	extra := h.Extra
	if needUncompressed || needCompressed || needOffset {
		fields := zip64Fields{}
		if needUncompressed {
			fields.uncompressedSize = &h.UncompressedSize64
		}
		if needCompressed {
			fields.compressedSize = &h.CompressedSize64
		}
		if needOffset {
			fields.localOffset = &h.LocalHeaderOffset
		}
		extra = append(append([]byte{}, extra...), encodeZip64Extra(fields)...)
	}

	var buf [directoryHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directoryHeaderSignature))
	b.uint16(h.CreatorVersion)
	b.uint16(h.ReaderVersion)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(h.CRC32)
	if needCompressed {
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(h.CompressedSize64))
	}
	if needUncompressed {
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(h.UncompressedSize64))
	}
	b.uint16(uint16(len(h.Name)))
	b.uint16(uint16(len(extra)))
	b.uint16(uint16(len(h.Comment)))
	b.uint16(uint16(h.Disk))
	b.uint16(0) // internal file attributes
	b.uint32(h.ExternalAttrs)
	if needOffset {
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(h.LocalHeaderOffset))
	}

	cw := &countWriter{w: w}
	if _, err := cw.Write(buf[:]); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(cw, h.Name); err != nil {
		return 0, err
	}
	if _, err := cw.Write(extra); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(cw, h.Comment); err != nil {
		return 0, err
	}
	return cw.count, nil
}

func writeZip64EOCD(w io.Writer, records, size, offset uint64) error {
	var buf [directory64EndLen + directory64LocLen]byte
	b := writeBuf(buf[:])

	b.uint32(directory64EndSignature)
	b.uint64(directory64EndLen - 12)
	b.uint16(zipVersion45)
	b.uint16(zipVersion45)
	b.uint32(0)
	b.uint32(0)
	b.uint64(records)
	b.uint64(records)
	b.uint64(size)
	b.uint64(offset)

	b.uint32(directory64LocSignature)
	b.uint32(0)
	b.uint64(offset + size)
	b.uint32(1)

	_, err := w.Write(buf[:])
	return err
}

func writeEOCD(w io.Writer, records, size, offset uint64, comment string, zip64 bool) error {
	if zip64 {
		records = uint16max
		size = uint32max
		offset = uint32max
	}
	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directoryEndSignature))
	b.uint16(0) // disk number
	b.uint16(0) // disk with start of central directory
	b.uint16(uint16(records))
	b.uint16(uint16(records))
	b.uint32(uint32(size))
	b.uint32(uint32(offset))
	b.uint16(uint16(len(comment)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, comment)
	return err
}
