// Package resp speaks the Redis serialization protocol (RESP2) directly over
// a single connection. It backs store.Store without a client library and
// provides the dial-and-PING probe used by the health endpoint.
package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxBulkLen mirrors the server's proto-max-bulk-len default.
const maxBulkLen = 512 * 1024 * 1024

// ErrProtocol reports a reply that does not follow RESP framing. The
// connection is unusable afterwards.
var ErrProtocol = errors.New("resp: protocol error")

// Error is an error line sent by the server ("-ERR ...").
type Error string

func (e Error) Error() string { return string(e) }

type Kind byte

const (
	KindSimple  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

type Reply struct {
	Kind  Kind
	Str   string
	Int   int64
	Array []Reply
	// Null is set for "$-1" and "*-1".
	Null bool
}

// Err returns the server error carried by an error reply, or nil.
func (r Reply) Err() error {
	if r.Kind == KindError {
		return Error(r.Str)
	}
	return nil
}

// AppendCommand encodes args as an array of bulk strings.
func AppendCommand(dst []byte, args ...string) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, '\r', '\n')
	for _, a := range args {
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(a)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, a...)
		dst = append(dst, '\r', '\n')
	}
	return dst
}

// Reader decodes replies from a stream. Short reads are absorbed by the
// underlying bufio.Reader; a reply is only returned once complete.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

func (r *Reader) ReadReply() (Reply, error) {
	line, err := r.readLine()
	if err != nil {
		return Reply{}, err
	}
	if len(line) == 0 {
		return Reply{}, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	kind, body := Kind(line[0]), string(line[1:])
	switch kind {
	case KindSimple, KindError:
		return Reply{Kind: kind, Str: body}, nil

	case KindInteger:
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Reply{}, fmt.Errorf("%w: bad integer %q", ErrProtocol, body)
		}
		return Reply{Kind: kind, Int: n}, nil

	case KindBulk:
		n, err := parseLen(body)
		if err != nil {
			return Reply{}, err
		}
		if n < 0 {
			return Reply{Kind: kind, Null: true}, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r.br, buf); err != nil {
			return Reply{}, fmt.Errorf("resp: read bulk: %w", err)
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return Reply{}, fmt.Errorf("%w: bulk string not terminated by CRLF", ErrProtocol)
		}
		return Reply{Kind: kind, Str: string(buf[:n])}, nil

	case KindArray:
		n, err := parseLen(body)
		if err != nil {
			return Reply{}, err
		}
		if n < 0 {
			return Reply{Kind: kind, Null: true}, nil
		}
		items := make([]Reply, 0, n)
		for i := 0; i < n; i++ {
			item, err := r.ReadReply()
			if err != nil {
				return Reply{}, err
			}
			items = append(items, item)
		}
		return Reply{Kind: kind, Array: items}, nil
	}

	return Reply{}, fmt.Errorf("%w: unknown prefix %q", ErrProtocol, line[0])
}

// parseLen accepts -1 (null) and non-negative lengths only.
func parseLen(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < -1 || n > maxBulkLen {
		return 0, fmt.Errorf("%w: bad length %q", ErrProtocol, s)
	}
	return n, nil
}

func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: line too long", ErrProtocol)
	}
	if err != nil {
		return nil, fmt.Errorf("resp: read line: %w", err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}
