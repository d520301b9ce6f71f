package codec

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCanonicalBytesSortsKeys(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "flat object",
			input: `{"b":1,"a":2}`,
			want:  `{"a":2,"b":1}`,
		},
		{
			name:  "nested object",
			input: `{"z":{"y":true,"x":null},"a":[3,2,1]}`,
			want:  `{"a":[3,2,1],"z":{"x":null,"y":true}}`,
		},
		{
			name:  "arrays keep order",
			input: `["b","a",{"k":1}]`,
			want:  `["b","a",{"k":1}]`,
		},
		{
			name:  "no whitespace",
			input: "{\n  \"a\": 1,\n  \"b\": \"x\"\n}",
			want:  `{"a":1,"b":"x"}`,
		},
		{
			name:  "number literals preserved",
			input: `{"int":3,"float":1.5,"exp":1e3}`,
			want:  `{"exp":1e3,"float":1.5,"int":3}`,
		},
		{
			name:  "utf8 unescaped",
			input: `{"s":"héllo <&>"}`,
			want:  `{"s":"héllo <&>"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value any
			decodeNumber(t, tt.input, &value)
			got, err := CanonicalBytes(value)
			if err != nil {
				t.Fatalf("CanonicalBytes: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("CanonicalBytes = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSHA256HexDeterministicUnderKeyOrder(t *testing.T) {
	variants := []string{
		`{"a":1,"b":{"c":[1,2],"d":"x"},"e":null}`,
		`{"e":null,"a":1,"b":{"d":"x","c":[1,2]}}`,
		`{"b":{"c":[1,2],"d":"x"},"e":null,"a":1}`,
	}
	var first string
	for i, variant := range variants {
		var value any
		decodeNumber(t, variant, &value)
		digest, err := SHA256Hex(value)
		if err != nil {
			t.Fatalf("SHA256Hex: %v", err)
		}
		if len(digest) != 64 {
			t.Fatalf("digest length = %d, want 64", len(digest))
		}
		if i == 0 {
			first = digest
			continue
		}
		if digest != first {
			t.Errorf("variant %d hashed to %s, want %s", i, digest, first)
		}
	}
}

func TestSHA256HexDiffersForDifferentContent(t *testing.T) {
	a, err := SHA256Hex(map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := SHA256Hex(map[string]any{"a": 2})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("different payloads hashed identically")
	}
}

func TestCanonicalBytesFromStruct(t *testing.T) {
	type inner struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	got, err := CanonicalBytes(inner{B: "x", A: 3})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":3,"b":"x"}` {
		t.Errorf("CanonicalBytes = %s", got)
	}
}

func TestSHA256HexStableAcrossRepeats(t *testing.T) {
	value := map[string]any{"k": []any{"a", 1, true, nil}}
	first, err := SHA256Hex(value)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := SHA256Hex(value)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("hash changed on repeat %d", i)
		}
	}
}

func decodeNumber(t *testing.T, input string, v any) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		t.Fatalf("decode %q: %v", input, err)
	}
}
