// Package formats provides binary codecs for the details pipeline files:
// DTL terrain detail layers and DDA baked details assets.
package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Note: DTL (detail terrain layers) is implemented in dtl.go
// Note: DDA (baked details data asset) is implemented in dda.go

// Version represents a file format version.
type Version struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// writeHeader writes a 4-byte magic and the version stored as [minor, major].
func writeHeader(w io.Writer, magic string, v Version) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	_, err := w.Write([]byte{v.Minor, v.Major})
	return err
}

// readSlice reads count fixed-size elements into a new slice after checking
// that the reader still holds enough bytes.
func readSlice[T any](r *bytes.Reader, count int, elemSize int, truncated error, what string) ([]T, error) {
	if count < 0 || int64(count)*int64(elemSize) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: reading %s", truncated, what)
	}
	out := make([]T, count)
	if count == 0 {
		return out, nil
	}
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: reading %s", truncated, what)
	}
	return out, nil
}

func readString(r *bytes.Reader, truncated error) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: reading string length", truncated)
	}
	if int(n) > r.Len() {
		return "", fmt.Errorf("%w: reading string", truncated)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: reading string", truncated)
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
