package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxMessageSize bounds a single JSON-RPC payload.
const maxMessageSize = 64 << 20

var errMissingContentLength = errors.New("missing Content-Length header")

// readMessage reads one Content-Length framed message. Other headers, such
// as Content-Type, are ignored.
func readMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		value = strings.TrimSpace(value)
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		if n > maxMessageSize {
			return nil, fmt.Errorf("message of %d bytes exceeds the %d byte limit", n, maxMessageSize)
		}
		length = n
	}
	if length < 0 {
		return nil, errMissingContentLength
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeMessage frames payload and writes header and body in one call.
func writeMessage(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+32)
	buf = fmt.Appendf(buf, "Content-Length: %d\r\n\r\n", len(payload))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
