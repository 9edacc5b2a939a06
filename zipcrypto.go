// Copyright 2025 The utzip authors.
//
// ZipCrypto: the traditional PKWARE stream cipher described in APPNOTE
// §6.1, implemented per spec.md §4.3.

package utzip

import (
	"crypto/rand"
	"hash/crc32"
	"io"
)

// zipCryptoKeys holds the three 32-bit key registers that drive the
// traditional ZIP stream cipher.
type zipCryptoKeys struct {
	key0, key1, key2 uint32
}

func newZipCryptoKeys(password string) zipCryptoKeys {
	k := zipCryptoKeys{key0: 0x12345678, key1: 0x23456789, key2: 0x34567890}
	for i := 0; i < len(password); i++ {
		k.keyUpdate(password[i])
	}
	return k
}

// crcTab is the standard reflected CRC-32/IEEE table, reused here so
// update_keys matches the exact polynomial spec.md §4.1/§4.3 specifies.
var crcTab = crc32.MakeTable(crc32.IEEE)

// decryptByte returns the keystream byte derived from key2 used to
// encrypt/decrypt the next plaintext byte, per APPNOTE §6.1.5.
func (k *zipCryptoKeys) decryptByte() byte {
	temp := uint16(k.key2) | 3
	return byte((uint32(temp) * uint32(temp^1)) >> 8)
}

// encryptByte encrypts one plaintext byte, advancing the keys, and
// returns the ciphertext byte.
func (k *zipCryptoKeys) encryptByte(plain byte) byte {
	c := plain ^ k.decryptByte()
	k.keyUpdate(plain)
	return c
}

// decryptPlain decrypts one ciphertext byte, advancing the keys, and
// returns the plaintext byte.
func (k *zipCryptoKeys) decryptPlain(cipher byte) byte {
	p := cipher ^ k.decryptByte()
	k.keyUpdate(p)
	return p
}

// keyUpdate is APPNOTE's update_keys step, advancing the three key
// registers by one plaintext byte.
func (k *zipCryptoKeys) keyUpdate(b byte) {
	k.key0 = crc32Update(k.key0, b)
	k.key1 = (k.key1 + (k.key0 & 0xff)) * 134775813 + 1
	k.key2 = crc32Update(k.key2, byte(k.key1>>24))
}

func crc32Update(crc uint32, b byte) uint32 {
	return crcTab[byte(crc)^b] ^ (crc >> 8)
}

// zipCryptoEncryptor wraps an io.Writer, encrypting every byte written
// through it with the traditional cipher after emitting the 12-byte
// encryption header.
type zipCryptoEncryptor struct {
	w    io.Writer
	keys zipCryptoKeys
}

// newZipCryptoEncryptor writes the 12-byte encryption header (11 random
// bytes plus checkByte, see traditionalCheckByte) and returns a writer
// that encrypts everything written to it afterwards.
func newZipCryptoEncryptor(w io.Writer, password string, checkByte byte) (*zipCryptoEncryptor, error) {
	keys := newZipCryptoKeys(password)
	header := make([]byte, zipCryptoHeadLen)
	if _, err := rand.Read(header[:zipCryptoHeadLen-1]); err != nil {
		return nil, err
	}
	header[zipCryptoHeadLen-1] = checkByte
	enc := make([]byte, zipCryptoHeadLen)
	for i, b := range header {
		enc[i] = keys.encryptByte(b)
	}
	if _, err := w.Write(enc); err != nil {
		return nil, err
	}
	return &zipCryptoEncryptor{w: w, keys: keys}, nil
}

func (e *zipCryptoEncryptor) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = e.keys.encryptByte(b)
	}
	return e.w.Write(out)
}

// zipCryptoDecryptor wraps an io.Reader, decrypting bytes read from it.
type zipCryptoDecryptor struct {
	r    io.Reader
	keys zipCryptoKeys
}

// newZipCryptoDecryptor reads and decrypts the 12-byte encryption
// header, initializing the keystream for subsequent reads, and returns the
// decrypted check byte (the header's final byte) so the caller can
// compare it against the entry's expected check value (spec.md §4.3,
// property 6: a wrong password fails the check-byte test for ~255/256
// of random passwords).
func newZipCryptoDecryptor(r io.Reader, password string) (*zipCryptoDecryptor, byte, error) {
	keys := newZipCryptoKeys(password)
	header := make([]byte, zipCryptoHeadLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, err
	}
	var lastPlain byte
	for _, b := range header {
		lastPlain = keys.decryptPlain(b)
	}
	return &zipCryptoDecryptor{r: r, keys: keys}, lastPlain, nil
}

func (d *zipCryptoDecryptor) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] = d.keys.decryptPlain(p[i])
	}
	return n, err
}

// traditionalCheckByte computes the high byte of the entry's 16-bit
// "check" value per spec.md §4.3: the high 16 bits of the CRC-32 when
// no data descriptor is used, otherwise the high byte of the MS-DOS
// mod-time field (since the CRC is not known yet when the header must
// be written).
func traditionalCheckByte(crc uint32, modTime uint16, hasDataDescriptor bool) byte {
	if hasDataDescriptor {
		return byte(modTime >> 8)
	}
	return byte(crc >> 24)
}
