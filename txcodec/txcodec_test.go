package txcodec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/abcistate/value"
)

func frame(body []byte, nonce uint32) []byte {
	buf := make([]byte, 4+len(body)+4)
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	binary.BigEndian.PutUint32(buf[4+len(body):], nonce)
	return buf
}

func TestEncode_Layout(t *testing.T) {
	require := require.New(t)

	buf, err := Encode(value.MustParse(`{"nonce":1}`), 7)
	require.NoError(err)
	require.Equal(frame([]byte(`{"nonce":1}`), 7), buf)
}

func TestEncode_SortsKeys(t *testing.T) {
	a, err := Encode(value.MustParse(`{"b":1,"a":2}`), 0)
	require.NoError(t, err)
	b, err := Encode(value.MustParse(`{"a":2,  "b":1}`), 0)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestRoundTrip(t *testing.T) {
	payloads := []string{`{}`, `{"nonce":0}`, `[1,"x",null]`, `"s"`, `{"deep":{"x":[true]}}`}
	for _, p := range payloads {
		for _, nonce := range []uint32{0, 1, 0xffffffff} {
			buf, err := Encode(value.MustParse(p), nonce)
			require.NoError(t, err)
			tx, err := Decode(buf)
			require.NoError(t, err)
			require.Equal(t, nonce, tx.Nonce)
			require.True(t, value.MustParse(p).Equal(tx.Payload), "payload %s", p)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	good := frame([]byte(`{"a":1}`), 3)

	overlong := make([]byte, 8)
	binary.BigEndian.PutUint32(overlong, MaxPayloadSize+1)

	tests := []struct {
		name string
		buf  []byte
	}{
		{"nil", nil},
		{"short", []byte{0, 0, 0}},
		{"header only", []byte{0, 0, 0, 1}},
		{"truncated", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte{}, good...), 0)},
		{"length too large", overlong},
		{"not json", frame([]byte(`{a:1}`), 0)},
		{"empty body", frame(nil, 0)},
		{"invalid utf8", frame([]byte{'"', 0xff, 0xfe, '"'}, 0)},
		{"two documents", frame([]byte(`{} {}`), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			require.ErrorIs(t, err, ErrInvalidEncoding)
		})
	}
}
