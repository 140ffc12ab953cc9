package resp

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCommand(t *testing.T) {
	got := AppendCommand(nil, "SET", "invite:a", "héllo", "EX", "604800")
	want := "*5\r\n$3\r\nSET\r\n$8\r\ninvite:a\r\n$6\r\nhéllo\r\n$2\r\nEX\r\n$6\r\n604800\r\n"
	assert.Equal(t, want, string(got))
}

func TestReadReplyKinds(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Reply
	}{
		{"simple", "+PONG\r\n", Reply{Kind: KindSimple, Str: "PONG"}},
		{"error", "-ERR wrong number of arguments\r\n", Reply{Kind: KindError, Str: "ERR wrong number of arguments"}},
		{"integer", ":42\r\n", Reply{Kind: KindInteger, Int: 42}},
		{"negative integer", ":-7\r\n", Reply{Kind: KindInteger, Int: -7}},
		{"bulk", "$5\r\nhello\r\n", Reply{Kind: KindBulk, Str: "hello"}},
		{"empty bulk", "$0\r\n\r\n", Reply{Kind: KindBulk, Str: ""}},
		{"bulk with crlf inside", "$4\r\na\r\nb\r\n", Reply{Kind: KindBulk, Str: "a\r\nb"}},
		{"null bulk", "$-1\r\n", Reply{Kind: KindBulk, Null: true}},
		{"null array", "*-1\r\n", Reply{Kind: KindArray, Null: true}},
		{"array", "*2\r\n$1\r\na\r\n:1\r\n", Reply{Kind: KindArray, Array: []Reply{
			{Kind: KindBulk, Str: "a"},
			{Kind: KindInteger, Int: 1},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewReader(strings.NewReader(tc.in)).ReadReply()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestErrorReplyCarriesServerError(t *testing.T) {
	reply, err := NewReader(strings.NewReader("-WRONGPASS invalid password\r\n")).ReadReply()
	require.NoError(t, err)

	var srvErr Error
	require.ErrorAs(t, reply.Err(), &srvErr)
	assert.Equal(t, "WRONGPASS invalid password", srvErr.Error())
}

func TestReadReplyPartialReads(t *testing.T) {
	in := "$11\r\nhello world\r\n+OK\r\n"
	rd := NewReader(iotest.OneByteReader(strings.NewReader(in)))

	first, err := rd.ReadReply()
	require.NoError(t, err)
	assert.Equal(t, "hello world", first.Str)

	second, err := rd.ReadReply()
	require.NoError(t, err)
	assert.Equal(t, "OK", second.Str)
}

func TestReadReplyPipelinedStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("+OK\r\n$-1\r\n:1\r\n")
	rd := NewReader(&buf)

	var kinds []Kind
	for i := 0; i < 3; i++ {
		r, err := rd.ReadReply()
		require.NoError(t, err)
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []Kind{KindSimple, KindBulk, KindInteger}, kinds)

	_, err := rd.ReadReply()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadReplyMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown prefix":      "!oops\r\n",
		"missing cr":          "+OK\n",
		"bad integer":         ":abc\r\n",
		"bad bulk length":     "$x\r\n",
		"negative bulk":       "$-2\r\n",
		"bulk missing crlf":   "$3\r\nabcXY",
		"oversized bulk":      "$999999999999\r\n",
		"empty line":          "\r\n",
		"bad array length":    "*-5\r\n",
		"array short element": "*2\r\n+a\r\n!b\r\n",
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(in)).ReadReply()
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestReadReplyTruncated(t *testing.T) {
	_, err := NewReader(strings.NewReader("$10\r\nshort")).ReadReply()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(strings.NewReader("+PON")).ReadReply()
	assert.ErrorIs(t, err, io.EOF)
}
