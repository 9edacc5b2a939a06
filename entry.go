// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package utzip

import (
	"os"
	"path"
	"strings"
	"time"
)

// Compression methods, as stored in FileHeader.Method.
const (
	Store   uint16 = 0  // no compression
	Deflate uint16 = 8  // DEFLATE compressed
	Bzip2   uint16 = 12 // Bzip2 compressed
)

// General purpose bit flags, per APPNOTE section 4.4.4.
const (
	flagEncrypted      uint16 = 1 << 0
	flagDataDescriptor uint16 = 1 << 3
	flagUTF8           uint16 = 1 << 11
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50
	dataDescriptorSignature  = 0x08074b50 // de-facto standard; required by OS X Finder
	fileHeaderLen            = 30         // + filename + extra
	directoryHeaderLen       = 46         // + filename + extra + comment
	directoryEndLen          = 22         // + comment
	dataDescriptorLen        = 16         // four uint32: descriptor signature, crc32, compressed size, size
	dataDescriptor64Len      = 24         // descriptor with 8 byte sizes
	directory64LocLen        = 20
	directory64EndLen        = 56 // + extra
	extTimeExtraLen          = 9  // 2*SizeOf(uint16) + SizeOf(uint8) + SizeOf(uint32)

	// Constants for the first byte in CreatorVersion.
	creatorFAT    = 0
	creatorUnix   = 3
	creatorNTFS   = 11
	creatorVFAT   = 14
	creatorMacOSX = 19

	// Version numbers.
	zipVersion20 = 20 // 2.0
	zipVersion45 = 45 // 4.5 (reads and writes zip64 archives)

	// Limits for non zip64 files.
	uint16max = (1 << 16) - 1
	uint32max = (1 << 32) - 1

	// Extra header IDs.
	//
	// IDs 0..31 are reserved for official use by PKWARE. IDs above that
	// range are defined by third-party vendors. See
	// http://mdfs.net/Docs/Comp/Archiving/Zip/ExtraField
	zip64ExtraID     = 0x0001 // Zip64 extended information
	extTimeExtraID   = 0x5455 // Extended timestamp (UT)
	unicodePathID    = 0x7075 // Info-ZIP Unicode Path Extra Field (up)
	zipCryptoHeadLen = 12     // ZipCrypto encryption header length
)

const eocdMaxCommentLen = 0xffff
const eocdSearchWindow = directoryEndLen + eocdMaxCommentLen // 65,557 bytes per spec.md §4.4

// FileHeader describes a single entry within a ZIP archive. See
// spec.md's Entry (in-archive) data model for the invariants this type
// must satisfy once finalized by the archive writer.
type FileHeader struct {
	// Name is the name of the file, using forward slashes. A trailing
	// slash marks the entry as a directory.
	Name string

	// Comment is a per-entry comment, shorter than 64KiB.
	Comment string

	// NonUTF8 suppresses the UTF-8 flag bit even if Name/Comment are
	// valid UTF-8 that would otherwise set it.
	NonUTF8 bool

	CreatorVersion uint16
	ReaderVersion  uint16
	Flags          uint16

	// Method is the compression method: Store, Deflate or Bzip2.
	Method uint16

	// Modified is the entry's last-modified time. An extended
	// timestamp (UT extra field) is always emitted alongside the
	// legacy MS-DOS date/time pair.
	Modified time.Time

	CRC32 uint32

	CompressedSize64   uint64
	UncompressedSize64 uint64
	Extra              []byte
	ExternalAttrs      uint32 // meaning depends on CreatorVersion

	// Disk is the split-volume disk number that holds this entry's
	// local header, populated by the reader.
	Disk uint32

	// LocalHeaderOffset is the byte offset of the local header within
	// its disk, populated by the reader and by the writer once an
	// entry has been emitted.
	LocalHeaderOffset uint64

	// Encrypted reports whether the entry's data is protected by the
	// traditional ZipCrypto stream cipher (flag bit 0).
	Encrypted bool
}

// IsDir reports whether the entry is a directory per spec.md's Entry
// invariant: name ends with '/' or the DOS directory attribute bit is
// set.
func (h *FileHeader) IsDir() bool {
	return strings.HasSuffix(h.Name, "/") || h.dosAttrs()&msdosDir != 0
}

func (h *FileHeader) dosAttrs() uint32 {
	switch h.CreatorVersion >> 8 {
	case creatorNTFS, creatorVFAT, creatorFAT:
		return h.ExternalAttrs
	default:
		return 0
	}
}

// isZip64 reports whether any of the entry's 64-bit fields require
// ZIP64 promotion in the central directory (spec.md §3 Entry invariant).
func (h *FileHeader) isZip64() bool {
	return h.CompressedSize64 >= uint32max || h.UncompressedSize64 >= uint32max || h.LocalHeaderOffset >= uint32max
}

// FileInfo returns an os.FileInfo view of the header.
func (h *FileHeader) FileInfo() os.FileInfo {
	return headerFileInfo{h}
}

type headerFileInfo struct {
	fh *FileHeader
}

func (fi headerFileInfo) Name() string { return path.Base(fi.fh.Name) }
func (fi headerFileInfo) Size() int64 {
	return int64(fi.fh.UncompressedSize64)
}
func (fi headerFileInfo) IsDir() bool        { return fi.Mode().IsDir() }
func (fi headerFileInfo) ModTime() time.Time { return fi.fh.Modified }
func (fi headerFileInfo) Mode() os.FileMode  { return fi.fh.Mode() }
func (fi headerFileInfo) Sys() interface{}   { return fi.fh }

// FileInfoHeader creates a partially-populated FileHeader from an
// os.FileInfo. The caller must still set Name to the full archive path,
// since os.FileInfo only carries the base name.
func FileInfoHeader(fi os.FileInfo) (*FileHeader, error) {
	size := fi.Size()
	fh := &FileHeader{
		Name:               fi.Name(),
		UncompressedSize64: uint64(size),
		CompressedSize64:   uint64(size),
		Modified:           fi.ModTime(),
	}
	fh.SetMode(fi.Mode())
	if fi.IsDir() && !strings.HasSuffix(fh.Name, "/") {
		fh.Name += "/"
	}
	return fh, nil
}

const (
	// Unix constants. The specification doesn't mention them, but
	// these are the values agreed on by tools.
	s_IFMT   = 0xf000
	s_IFSOCK = 0xc000
	s_IFLNK  = 0xa000
	s_IFREG  = 0x8000
	s_IFBLK  = 0x6000
	s_IFDIR  = 0x4000
	s_IFCHR  = 0x2000
	s_IFIFO  = 0x1000
	s_ISUID  = 0x800
	s_ISGID  = 0x400
	s_ISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Mode returns the permission and mode bits for the FileHeader.
func (h *FileHeader) Mode() (mode os.FileMode) {
	switch h.CreatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		mode = unixModeToFileMode(h.ExternalAttrs >> 16)
	case creatorNTFS, creatorVFAT, creatorFAT:
		mode = msdosModeToFileMode(h.ExternalAttrs)
	}
	if strings.HasSuffix(h.Name, "/") {
		mode |= os.ModeDir
	}
	return mode
}

// SetMode changes the permission and mode bits for the FileHeader.
func (h *FileHeader) SetMode(mode os.FileMode) {
	h.CreatorVersion = h.CreatorVersion&0xff | creatorUnix<<8
	h.ExternalAttrs = fileModeToUnixMode(mode) << 16

	// Set MS-DOS attributes too, as Info-ZIP does.
	if mode&os.ModeDir != 0 {
		h.ExternalAttrs |= msdosDir
	}
	if mode&0200 == 0 {
		h.ExternalAttrs |= msdosReadOnly
	}
}

// SetStreaming toggles the data-descriptor flag bit (spec.md §4.1's
// flag bit 3) and, when enabling it, zeroes CRC32/sizes so the local
// header writeLocalHeader emits before compression runs doesn't carry
// stale placeholder values. A Writer whose underlying SplitWriter is
// forward-only (see splitvolume.go) cannot patch a local header after
// the fact, so every AddEntry/ReCompress call on non-directory content
// must enable streaming.
func (h *FileHeader) SetStreaming(v bool) {
	if v {
		h.Flags |= flagDataDescriptor
		h.CRC32 = 0
		h.CompressedSize64 = 0
		h.UncompressedSize64 = 0
	} else {
		h.Flags &^= flagDataDescriptor
	}
}

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = s_IFREG
	case os.ModeDir:
		m = s_IFDIR
	case os.ModeSymlink:
		m = s_IFLNK
	case os.ModeNamedPipe:
		m = s_IFIFO
	case os.ModeSocket:
		m = s_IFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = s_IFCHR
		} else {
			m = s_IFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= s_ISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= s_ISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= s_ISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & s_IFMT {
	case s_IFBLK:
		mode |= os.ModeDevice
	case s_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case s_IFDIR:
		mode |= os.ModeDir
	case s_IFIFO:
		mode |= os.ModeNamedPipe
	case s_IFLNK:
		mode |= os.ModeSymlink
	case s_IFREG:
		// nothing to do
	case s_IFSOCK:
		mode |= os.ModeSocket
	}
	if m&s_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&s_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&s_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
