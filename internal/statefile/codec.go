package statefile

import (
	"strconv"
	"strings"
)

// Codec converts a record value to and from its file content.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// String stores a single line of text.
var String Codec[string] = stringCodec{}

// Int stores a decimal integer.
var Int Codec[int] = intCodec{}

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringCodec) Decode(b []byte) (string, error) {
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(line), nil
}

type intCodec struct{}

func (intCodec) Encode(v int) ([]byte, error) { return []byte(strconv.Itoa(v)), nil }

func (intCodec) Decode(b []byte) (int, error) {
	line, _, _ := strings.Cut(string(b), "\n")
	return strconv.Atoi(strings.TrimSpace(line))
}
