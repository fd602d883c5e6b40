package script

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
)

// FailureKind classifies a payload that could not be turned into source text.
type FailureKind string

const (
	FailureCorrupt FailureKind = "corrupt"  // zlib stream did not inflate
	FailureNotUTF8 FailureKind = "not_utf8" // inflated bytes are not UTF-8
)

// DecodeFailure is returned by Decompress. Callers treat it as "skip this
// record" rather than aborting a batch.
type DecodeFailure struct {
	Kind FailureKind
	Err  error
}

func (e *DecodeFailure) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// Decompress inflates a zlib payload and returns it as UTF-8 text.
func Decompress(payload []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", &DecodeFailure{Kind: FailureCorrupt, Err: err}
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", &DecodeFailure{Kind: FailureCorrupt, Err: err}
	}
	if !utf8.Valid(out) {
		return "", &DecodeFailure{Kind: FailureNotUTF8}
	}
	return string(out), nil
}

// Compress deflates src into a zlib payload at the given level
// (-1 for the library default, 0-9 otherwise).
func Compress(src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}
