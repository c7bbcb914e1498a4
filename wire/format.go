package wire

import (
	"bytes"
	"fmt"
)

// Format selects how a value is laid out on the wire.
type Format int

const (
	// FormatOrdinal encodes values as positional JSON arrays.
	FormatOrdinal Format = iota
	// FormatNamed encodes values as JSON objects with property names.
	FormatNamed
)

func (f Format) String() string {
	switch f {
	case FormatOrdinal:
		return "ordinal"
	case FormatNamed:
		return "named"
	default:
		return "unknown"
	}
}

// ParseFormat parses the X-Neatoo-Format header value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "ordinal":
		return FormatOrdinal, nil
	case "named":
		return FormatNamed, nil
	default:
		return FormatOrdinal, fmt.Errorf("wire: unknown format %q", s)
	}
}

// DetectFormat auto-detects a payload's format from its first non-whitespace
// byte: '[' means Ordinal, '{' means Named.
func DetectFormat(data []byte) (Format, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return FormatOrdinal, fmt.Errorf("wire: empty payload")
	}
	switch trimmed[0] {
	case '[':
		return FormatOrdinal, nil
	case '{':
		return FormatNamed, nil
	default:
		return FormatOrdinal, fmt.Errorf("wire: payload starts with %q, expected '[' or '{'", trimmed[0])
	}
}
