// Package sanitize normalizes source row values into warehouse-safe strings.
//
// The RAW layer deliberately flattens every column to wide VARCHAR: the
// vendor schema is long-lived, its declarations are inconsistent, and its
// text columns mix Latin-1 with UTF-8. Semantic re-typing happens in the
// datamart layer where casts are explicit.
package sanitize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxValueLength is the clamp, in characters, applied to every sanitized
// value.
const MaxValueLength = 16000

// nullSentinels are textual values that mean "no value" in the source.
var nullSentinels = map[string]bool{
	"nan":  true,
	"None": true,
	"NaT":  true,
	"NULL": true,
	"null": true,
}

// Mode selects how aggressively values are decoded.
type Mode int

const (
	// ModeDefault repairs byte values with UTF-8 replacement on receipt.
	ModeDefault Mode = iota
	// ModeForceByteDecode additionally forces a byte-level decode of string
	// values; used when a table is re-queued after an encoding failure.
	ModeForceByteDecode
)

// Sanitizer converts arbitrary driver-typed values into insert-safe strings.
type Sanitizer struct {
	mode Mode
}

// New returns a Sanitizer in the default mode.
func New() *Sanitizer {
	return &Sanitizer{mode: ModeDefault}
}

// NewStrict returns a Sanitizer that forces byte decoding of strings.
func NewStrict() *Sanitizer {
	return &Sanitizer{mode: ModeForceByteDecode}
}

// Clean maps a single value to its warehouse string form.
func (s *Sanitizer) Clean(value interface{}) string {
	text, isNull := s.stringify(value)
	if isNull {
		return ""
	}
	return clampRepair(text)
}

// CleanRow sanitizes one row in place order.
func (s *Sanitizer) CleanRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = s.Clean(v)
	}
	return out
}

// CleanBatch sanitizes every row of a batch.
func (s *Sanitizer) CleanBatch(rows [][]interface{}) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = s.CleanRow(row)
	}
	return out
}

func (s *Sanitizer) stringify(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		if nullSentinels[v] {
			return "", true
		}
		if s.mode == ModeForceByteDecode {
			return decodeBytes([]byte(v)), false
		}
		return repairUTF8(v), false
	case []byte:
		return decodeBytes(v), false
	case bool:
		if v {
			return "True", false
		}
		return "False", false
	case float32:
		if math.IsNaN(float64(v)) {
			return "", true
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32), false
	case float64:
		if math.IsNaN(v) {
			return "", true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), false
	case int:
		return strconv.Itoa(v), false
	case int8:
		return strconv.FormatInt(int64(v), 10), false
	case int16:
		return strconv.FormatInt(int64(v), 10), false
	case int32:
		return strconv.FormatInt(int64(v), 10), false
	case int64:
		return strconv.FormatInt(v, 10), false
	case uint64:
		return strconv.FormatUint(v, 10), false
	case time.Time:
		return v.Format("2006-01-02 15:04:05"), false
	default:
		text := fmt.Sprintf("%v", v)
		if nullSentinels[text] {
			return "", true
		}
		return repairUTF8(text), false
	}
}

// decodeBytes decodes a byte slice as UTF-8, substituting the replacement
// rune for invalid sequences.
func decodeBytes(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.WriteRune(r)
		}
		b = b[size:]
	}
	return sb.String()
}

// repairUTF8 round-trips a string through UTF-8 with replacement.
func repairUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// clampRepair applies escaping, control-character replacement, and the
// length clamp. Sanitizing an already-sanitized value is a no-op.
func clampRepair(s string) string {
	s = escapeQuoting(s)
	if len(s) > MaxValueLength {
		s = clampRunes(s, MaxValueLength)
	}
	return s
}

// escapeQuoting doubles single quotes and backslashes, replaces CR, LF and
// TAB with a space, and strips NUL bytes. Pairs that are already doubled are
// left alone so the transformation is idempotent.
func escapeQuoting(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\'':
			if i+1 < len(s) && s[i+1] == '\'' {
				sb.WriteString("''")
				i++
			} else {
				sb.WriteString("''")
			}
		case '\\':
			if i+1 < len(s) && s[i+1] == '\\' {
				sb.WriteString(`\\`)
				i++
			} else {
				sb.WriteString(`\\`)
			}
		case '\r', '\n', '\t':
			sb.WriteByte(' ')
		case 0:
			// dropped
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// clampRunes cuts s to at most max characters, never splitting a rune.
func clampRunes(s string, max int) string {
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
