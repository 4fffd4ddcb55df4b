package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a RESP array. It bounds
	// multi-key DEL and EXISTS.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string. Store limits are
	// far smaller; oversized arguments are rejected by the store with a
	// proper error code instead of a protocol error.
	MaxBulkLen = 64 * 1024

	// MaxInlineLen limits inline command line length.
	MaxInlineLen = 4 * 1024

	// maxHeaderLen bounds "*<n>" and "$<n>" lines.
	maxHeaderLen = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one command, either a RESP array of bulk strings or
// an inline command line. An empty command yields nil args.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == '*' {
		return readArray(r)
	}

	// Inline form, as typed into telnet: "GET key\r\n"
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	args := make([][]byte, len(fields))
	for i, f := range fields {
		args[i] = []byte(f)
	}
	return args, nil
}

func readArray(r *bufio.Reader) ([][]byte, error) {
	n, err := readLength(r, '*', MaxArrayLen)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	args := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulk(r)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func readBulk(r *bufio.Reader) ([]byte, error) {
	n, err := readLength(r, '$', MaxBulkLen)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

// readLength parses a "<prefix><n>\r\n" header. Only -1 is accepted as a
// negative length.
func readLength(r *bufio.Reader, prefix byte, limit int) (int, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c'", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}
	if n > limit {
		return 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrLimitExceeded, n, limit)
	}
	return n, nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxLen+2 {
			return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", err
		}
	}

	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// Reply writes RESP2 replies. Write errors are sticky and surface on Flush.
type Reply struct {
	w   *bufio.Writer
	err error
}

// NewReply wraps w.
func NewReply(w *bufio.Writer) *Reply {
	return &Reply{w: w}
}

func (r *Reply) write(parts ...string) {
	for _, p := range parts {
		if r.err != nil {
			return
		}
		_, r.err = r.w.WriteString(p)
	}
}

// Status writes "+s".
func (r *Reply) Status(s string) {
	r.write("+", s, "\r\n")
}

// Error writes "-s".
func (r *Reply) Error(s string) {
	r.write("-", s, "\r\n")
}

// Int writes ":n".
func (r *Reply) Int(n int64) {
	r.write(":", strconv.FormatInt(n, 10), "\r\n")
}

// Bulk writes a bulk string.
func (r *Reply) Bulk(s string) {
	r.write("$", strconv.Itoa(len(s)), "\r\n", s, "\r\n")
}

// Null writes the null bulk string.
func (r *Reply) Null() {
	r.write("$-1\r\n")
}

// ArrayHeader writes "*n"; the caller writes the n elements.
func (r *Reply) ArrayHeader(n int) {
	r.write("*", strconv.Itoa(n), "\r\n")
}

// Flush flushes buffered replies.
func (r *Reply) Flush() error {
	if r.err != nil {
		return r.err
	}
	return r.w.Flush()
}

func normalizeCommandName(b []byte) string {
	// Uppercase ASCII without allocating for already uppercased tokens.
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
