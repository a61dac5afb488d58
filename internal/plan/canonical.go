package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing. This is the
// only serialization plan digests may be computed from.
//
// Differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	// Round-trip through encoding/json so struct tags decide the shape;
	// UseNumber keeps integers exact.
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return marshalCanonical(tree)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val), nil
	case json.Number:
		if _, err := strconv.ParseInt(val.String(), 10, 64); err != nil {
			return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
		}
		return []byte(val.String()), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. RFC 8785: no HTML escaping, and U+2028/U+2029 stay literal;
// only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) []byte {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a plain string cannot fail.
	_ = enc.Encode(normalized)

	result := buf.Bytes()
	if n := len(result); n > 0 && result[n-1] == '\n' {
		result = result[:n-1]
	}

	// json.Encoder escapes U+2028/U+2029 for JavaScript embedding; RFC 8785
	// wants them literal. A \u202x sequence is a real escape only when
	// preceded by an even number of backslashes.
	return unescapeSeparators(result)
}

func unescapeSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+6 <= len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, " "...)
			} else {
				out = append(out, " "...)
			}
			backslashes = 0
			i += 6
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
		i++
	}
	return out
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalCanonicalString(k))
		buf.WriteByte(':')
		b, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(b)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native string comparison is UTF-8 and orders supplementary-plane
// characters differently.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
