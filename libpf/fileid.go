// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "github.com/lxhq/hpctoolkit/libpf"

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	sha256 "github.com/minio/sha256-simd"
)

// FileID identifies a load module independent of the path it was loaded from.
type FileID struct {
	hi, lo uint64
}

// NewFileID builds a FileID from its two halves.
func NewFileID(hi, lo uint64) FileID {
	return FileID{hi: hi, lo: lo}
}

// FileIDFromBytes parses a 16 byte slice into a FileID.
func FileIDFromBytes(b []byte) (FileID, error) {
	if len(b) != 16 {
		return FileID{}, fmt.Errorf("invalid length for bytes '%v': %d", b, len(b))
	}
	return NewFileID(binary.BigEndian.Uint64(b[0:8]), binary.BigEndian.Uint64(b[8:16])), nil
}

// Hi returns the high 64 bits.
func (f FileID) Hi() uint64 { return f.hi }

// Lo returns the low 64 bits.
func (f FileID) Lo() uint64 { return f.lo }

// IsZero reports whether the FileID was never computed.
func (f FileID) IsZero() bool {
	return f.hi == 0 && f.lo == 0
}

// String returns the 32 character hexadecimal form.
func (f FileID) String() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], f.hi)
	binary.BigEndian.PutUint64(b[8:16], f.lo)
	return hex.EncodeToString(b[:])
}

// FileIDFromExecutableReader hashes portions of the contents of the reader in order to
// generate a system-independent identifier. The file is expected to be an executable
// file where the header and footer has enough data to make the file unique.
func FileIDFromExecutableReader(reader io.ReadSeeker) (FileID, error) {
	h := sha256.New()

	// Hash algorithm: SHA256 of the following:
	// 1) 4 KiB header: covers the program headers and usually the GNU Build ID.
	// 2) 4 KiB trailer: in practice covers the ELF section headers.
	// 3) File length (8 bytes, big-endian). ELF files can be appended to without
	//    restrictions, so 1) and 2) alone are too easy to collide.

	// 1) Hash header
	if _, err := io.Copy(h, io.LimitReader(reader, 4096)); err != nil {
		return FileID{}, fmt.Errorf("failed to hash file header: %v", err)
	}

	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return FileID{}, fmt.Errorf("failed to seek end of file: %v", err)
	}

	// 2) Hash trailer
	tailBytes := min(size, 4096)
	if _, err = reader.Seek(-tailBytes, io.SeekEnd); err != nil {
		return FileID{}, fmt.Errorf("failed to seek file trailer: %v", err)
	}
	if _, err = io.Copy(h, reader); err != nil {
		return FileID{}, fmt.Errorf("failed to hash file trailer: %v", err)
	}

	// 3) Hash length
	lengthArray := make([]byte, 8)
	binary.BigEndian.PutUint64(lengthArray, uint64(size))
	if _, err = io.Copy(h, bytes.NewReader(lengthArray)); err != nil {
		return FileID{}, fmt.Errorf("failed to hash file length: %v", err)
	}

	return FileIDFromBytes(h.Sum(nil)[0:16])
}

// FileIDFromExecutableFile opens an executable file and calculates the FileID for it.
func FileIDFromExecutableFile(fileName string) (FileID, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return FileID{}, err
	}
	defer f.Close()

	return FileIDFromExecutableReader(f)
}
