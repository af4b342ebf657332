// Package blendfile reads the identifying header of .blend files and
// resolves them back to catalog entries for the "run file" workflow.
package blendfile

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/match"
	"github.com/zeptofine/blrs-cli/pkg/query"
)

var (
	// ErrUnrecognizedFormat means the file has no parseable blend header.
	ErrUnrecognizedFormat = errors.New("unrecognized blend file format")

	// ErrNoMatchingBuild means the header parsed but no catalog entry
	// corresponds; the build may exist remotely but was never fetched.
	ErrNoMatchingBuild = errors.New("no catalog build matches the file header")
)

// Header is the fixed 12-byte blend file header: "BLENDER", pointer-size
// marker, endianness marker, and a three-digit version.
type Header struct {
	PointerSize int // 4 or 8
	BigEndian   bool
	Version     build.Version // patch is not recorded in the header
}

var magic = []byte("BLENDER")

// ReadHeader parses the blend header from path. Gzip-compressed blend
// files are handled transparently.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	var r io.Reader = f
	head := make([]byte, 2)
	if _, err := io.ReadFull(f, head); err != nil {
		return Header{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Header{}, err
	}
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
		}
		defer gz.Close()
		r = gz
	}

	raw := make([]byte, 12)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
	}
	return parseHeader(raw, path)
}

func parseHeader(raw []byte, path string) (Header, error) {
	if !bytes.Equal(raw[:7], magic) {
		return Header{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
	}

	var h Header
	switch raw[7] {
	case '_':
		h.PointerSize = 4
	case '-':
		h.PointerSize = 8
	default:
		return Header{}, fmt.Errorf("%w: bad pointer marker %q", ErrUnrecognizedFormat, raw[7])
	}
	switch raw[8] {
	case 'v':
		h.BigEndian = false
	case 'V':
		h.BigEndian = true
	default:
		return Header{}, fmt.Errorf("%w: bad endian marker %q", ErrUnrecognizedFormat, raw[8])
	}

	n := 0
	for _, c := range raw[9:12] {
		if c < '0' || c > '9' {
			return Header{}, fmt.Errorf("%w: bad version digits %q", ErrUnrecognizedFormat, raw[9:12])
		}
		n = n*10 + int(c-'0')
	}
	// "293" is 2.93, "402" is 4.2.
	h.Version = build.Version{Major: n / 100, Minor: n % 100}
	return h, nil
}

// Query builds the search query a header implies: exact major and minor,
// everything else wildcarded (the header does not carry the patch level
// or the build hash).
func (h Header) Query() query.Query {
	return query.Query{
		Major:      query.ExactComp(h.Version.Major),
		Minor:      query.ExactComp(h.Version.Minor),
		Patch:      query.Component{Placement: query.Any},
		CommitTime: query.Any,
	}
}

// Identify resolves a file to the catalog build that produced it,
// preferring the newest matching entry.
func Identify(path string, candidates []build.Record) (build.Record, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return build.Record{}, err
	}
	rec, ok := match.ResolveOne(h.Query(), candidates, false)
	if !ok {
		return build.Record{}, fmt.Errorf("%w: %s needs %s", ErrNoMatchingBuild, path, h.Version)
	}
	return rec, nil
}
