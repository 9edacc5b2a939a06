// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package utzip implements the archive engine behind a PKWARE APPNOTE 6.3.x
compatible ZIP tool: binary format codec, the Store/Deflate/Bzip2
compression pipeline, the traditional ZipCrypto stream cipher, and the
archive reader/writer pair that the higher-level mode engine (see
pkg/modes) drives.

It does not parse command-line arguments, prompt for passwords, render
progress output, or write a logfile; those are the responsibility of a
caller built on top of this package.

See: https://www.pkware.com/appnote
*/
package utzip
