// Package codec produces the canonical byte serialization and SHA-256
// content hashes used to address every SDLC artifact.
//
// Canonical form: object keys sorted ascending, no insignificant
// whitespace, UTF-8 without HTML escaping, arrays in input order,
// numbers in their source representation. Two semantically equal JSON
// documents always canonicalize to identical bytes, so the hash is a
// pure function of artifact content.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalBytes serializes any JSON-marshalable value to its canonical
// byte form. The value is first round-tripped through encoding/json so
// struct tags, embedded types, and custom marshalers all apply before
// canonicalization.
func CanonicalBytes(value any) ([]byte, error) {
	raw, err := marshalNoEscape(value)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, decoded); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of the canonical
// bytes of value. This is the content hash used everywhere in the
// engine.
func SHA256Hex(value any) (string, error) {
	canonical, err := CanonicalBytes(value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SHA256HexBytes hashes raw file bytes. Used for attachment content
// hashes, where the payload is not JSON.
func SHA256HexBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func marshalNoEscape(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	// json.Encoder appends a newline; the decoder below ignores it, but
	// trim anyway so raw bytes stay minimal.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(v.String())
	case string:
		return writeString(buf, v)
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical codec: unsupported value type %T", value)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Drop the trailing newline the encoder adds.
	buf.Truncate(buf.Len() - 1)
	return nil
}
