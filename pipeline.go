// Copyright 2025 The utzip authors.
//
// The compression pipeline: a writer chain of Store/Deflate/Bzip2
// optionally wrapped by ZipCrypto, with CRC/size accounting and the
// auto-Store fallback, per spec.md §4.2.

package utzip

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
)

// LineEndingMode controls the optional line-ending translation applied
// to the byte stream before CRC accounting and compression (see
// SPEC_FULL.md "Supplemented features" #1; spec.md §4.1 anticipates
// this as "CRC-32 ... over raw uncompressed bytes (post line-ending
// translation if any)").
type LineEndingMode int

const (
	// NoTranslation passes bytes through unchanged (the default).
	NoTranslation LineEndingMode = iota
	// LFToCRLF rewrites bare LF to CRLF (the CLI's -l flag).
	LFToCRLF
	// CRLFToLF rewrites CRLF to LF (the CLI's --ll flag).
	CRLFToLF
)

// autoStoreBufferLimit bounds how much of an entry the pipeline will
// hold in memory to support the auto-Store retry described in spec.md
// §4.2: "the pipeline buffers original bytes up to a small threshold
// and retries in Store mode if the first flush shows expansion."
// Entries larger than this stream straight through Deflate and accept
// whatever the first pass produces.
const autoStoreBufferLimit = 256 * 1024

// DefaultLevel is the default Deflate/Bzip2 compression level
// (spec.md §4.2: "level 6 default").
const DefaultLevel = 6

// SizeAdaptiveLevel implements spec.md §4.2's size-adaptive default
// level policy, used when the caller has not pinned an explicit level
// and the source is a filesystem file of known size.
func SizeAdaptiveLevel(size int64) int {
	switch {
	case size <= 100:
		return 1
	case size <= 1024:
		return 1
	case size <= 10*1024:
		return 2
	case size <= 100*1024:
		return 3
	default:
		return DefaultLevel
	}
}

// PipelineResult carries the bookkeeping the compression pipeline
// yields back to the archive writer once an entry is finalized (spec.md
// §4.2: "On finalize: ... yield (crc, uncompressed-size, compressed-
// size) to the writer").
type PipelineResult struct {
	Method           uint16
	CRC32            uint32
	UncompressedSize uint64
	CompressedSize   uint64
}

// PipelineOptions configures one entry's compression-pipeline
// invocation.
type PipelineOptions struct {
	Method            uint16 // Store, Deflate or Bzip2
	Level             int    // compression level; meaning depends on Method
	LevelWasExplicit  bool   // suppresses auto-Store per spec.md §4.2
	Password          string // non-empty enables ZipCrypto
	ModTime           uint16 // MS-DOS mod-time field, for the ZipCrypto check byte
	HasDataDescriptor bool
	LineEnding        LineEndingMode
}

// translateLineEndings applies LineEndingMode to p, per Supplemented
// feature #1.
func translateLineEndings(mode LineEndingMode, p []byte) []byte {
	switch mode {
	case LFToCRLF:
		return bytes.ReplaceAll(bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n"))
	case CRLFToLF:
		return bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
	default:
		return p
	}
}

type methodEncoder interface {
	io.Writer
	Close() error
}

type nopCloseWriter struct{ io.Writer }

func (nopCloseWriter) Close() error { return nil }

func newMethodEncoder(method uint16, level int, sink io.Writer) (methodEncoder, error) {
	if level == 0 && method != Store {
		level = DefaultLevel
	}
	switch method {
	case Store:
		return nopCloseWriter{sink}, nil
	case Deflate:
		fw, err := flate.NewWriter(sink, level)
		if err != nil {
			return nil, err
		}
		return fw, nil
	case Bzip2:
		bw, err := bzip2.NewWriterLevel(sink, level)
		if err != nil {
			return nil, err
		}
		return bw, nil
	default:
		return nil, fmt.Errorf("utzip: unsupported compression method %d", method)
	}
}

// wrapEncryption wraps dest in a ZipCrypto encryptor when opts requests
// a password, writing the 12-byte encryption header immediately. crc is
// the entry's CRC-32 if already known (the buffered path knows it
// before writing a byte); pass 0 when it is not, in which case
// HasDataDescriptor must be true so the check byte falls back to the
// mod-time field per spec.md §4.3.
func wrapEncryption(dest io.Writer, opts PipelineOptions, crc uint32) (io.Writer, *zipCryptoEncryptor, error) {
	if opts.Password == "" {
		return dest, nil, nil
	}
	checkByte := traditionalCheckByte(crc, opts.ModTime, opts.HasDataDescriptor)
	enc, err := newZipCryptoEncryptor(dest, opts.Password, checkByte)
	if err != nil {
		return nil, nil, err
	}
	return enc, enc, nil
}

// CompressEntry runs one entry's data through the pipeline and writes
// the (possibly encrypted, possibly compressed) result to sink,
// returning the bookkeeping the archive writer needs to finalize the
// entry's header.
//
// When opts allows auto-Store and the entry is small enough to buffer
// (autoStoreBufferLimit), CompressEntry buffers the whole input,
// compresses it into memory, and falls back to Store if that expanded
// the data (spec.md §4.2, testable property 3). Larger entries stream
// straight through the requested method with no retry.
func CompressEntry(sink io.Writer, data io.Reader, opts PipelineOptions) (PipelineResult, error) {
	autoStoreEligible := opts.Method == Deflate && !opts.LevelWasExplicit

	if autoStoreEligible {
		return compressBuffered(sink, data, opts)
	}
	return compressStreamed(sink, data, opts)
}

func compressBuffered(sink io.Writer, data io.Reader, opts PipelineOptions) (PipelineResult, error) {
	var raw bytes.Buffer
	limited := io.LimitReader(data, autoStoreBufferLimit+1)
	if _, err := io.Copy(&raw, limited); err != nil {
		return PipelineResult{}, err
	}
	if raw.Len() > autoStoreBufferLimit {
		// Too large to buffer; fall through to streaming with no
		// retry, re-assembling the reader from what was already read.
		rest := io.MultiReader(bytes.NewReader(raw.Bytes()), data)
		return compressStreamed(sink, rest, opts)
	}

	translated := translateLineEndings(opts.LineEnding, raw.Bytes())
	crc := crc32.ChecksumIEEE(translated)

	var compressed bytes.Buffer
	enc, err := newMethodEncoder(Deflate, opts.Level, &compressed)
	if err != nil {
		return PipelineResult{}, err
	}
	if _, err := enc.Write(translated); err != nil {
		return PipelineResult{}, err
	}
	if err := enc.Close(); err != nil {
		return PipelineResult{}, err
	}

	method := uint16(Deflate)
	payload := compressed.Bytes()
	if compressed.Len() >= len(translated) {
		method = Store
		payload = translated
	}

	dest, enc2, err := wrapEncryption(sink, opts, crc)
	if err != nil {
		return PipelineResult{}, err
	}
	if _, err := dest.Write(payload); err != nil {
		return PipelineResult{}, err
	}

	compressedSize := uint64(len(payload))
	if enc2 != nil {
		compressedSize += zipCryptoHeadLen
	}
	return PipelineResult{
		Method:           method,
		CRC32:            crc,
		UncompressedSize: uint64(len(translated)),
		CompressedSize:   compressedSize,
	}, nil
}

func compressStreamed(sink io.Writer, data io.Reader, opts PipelineOptions) (PipelineResult, error) {
	counted := &countingWriter{w: sink}
	dest, enc, err := wrapEncryption(counted, opts, 0)
	if err != nil {
		return PipelineResult{}, err
	}
	encoder, err := newMethodEncoder(opts.Method, opts.Level, dest)
	if err != nil {
		return PipelineResult{}, err
	}

	crc := crc32.NewIEEE()
	buf := make([]byte, 32*1024)
	var total uint64
	for {
		n, readErr := data.Read(buf)
		if n > 0 {
			chunk := translateLineEndings(opts.LineEnding, buf[:n])
			crc.Write(chunk)
			total += uint64(len(chunk))
			if _, err := encoder.Write(chunk); err != nil {
				return PipelineResult{}, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return PipelineResult{}, readErr
		}
	}
	if err := encoder.Close(); err != nil {
		return PipelineResult{}, err
	}

	compressedSize := uint64(counted.n)
	if enc != nil {
		compressedSize += zipCryptoHeadLen
	}
	return PipelineResult{
		Method:           opts.Method,
		CRC32:            crc.Sum32(),
		UncompressedSize: total,
		CompressedSize:   compressedSize,
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
