package base64

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	random := make([]byte, 32)
	_, err := rand.Read(random)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   []byte
		encoded string
	}{
		{name: "empty", input: []byte{}, encoded: ""},
		{name: "text", input: []byte("hello world"), encoded: "aGVsbG8gd29ybGQ"},
		// 0xfb 0xff uses both URL-safe characters.
		{name: "url alphabet", input: []byte{0xfb, 0xff, 0xfe}, encoded: "-__-"},
		{name: "random", input: random},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			encoded := Encode(test.input)
			require.NotContains(t, encoded, "=")
			if test.encoded != "" || len(test.input) == 0 {
				require.Equal(t, test.encoded, encoded)
			}

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, len(test.input), len(decoded))
			if len(test.input) > 0 {
				require.Equal(t, test.input, decoded)
			}
		})
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	b, err := Decode("")
	require.NoError(t, err)
	require.Empty(t, b)

	b, err = Decode("aGk=")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), b)

	_, err = Decode("not base64!")
	require.Error(t, err)
}

func TestDecodeSegment(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "empty", input: "", want: []byte{}},
		{name: "unpadded", input: "aGk", want: []byte("hi")},
		{name: "padded", input: "aGk=", wantErr: true},
		{name: "inner padding", input: "aG=k", wantErr: true},
		{name: "standard alphabet", input: "+/8", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := DecodeSegment(test.input)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	s, err := EncodeJSON(map[string]any{"iss": "a<b>&c"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, DecodeJSON(s, &out))
	require.Equal(t, "a<b>&c", out["iss"])

	raw, err := Decode(s)
	require.NoError(t, err)
	require.Equal(t, `{"iss":"a<b>&c"}`, string(raw))

	require.Error(t, DecodeJSON(Encode([]byte("{nope")), &out))
}
