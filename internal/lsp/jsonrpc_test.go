package lsp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestJSONRPCFramingMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	msgs := []string{`{"jsonrpc":"2.0","method":"one"}`, `{"jsonrpc":"2.0","method":"two","params":{"x":"é"}}`}
	for i, m := range msgs {
		if err := writeMessage(&buf, []byte(m)); err != nil {
			t.Fatalf("write message %d: %v", i, err)
		}
	}
	reader := bufio.NewReader(&buf)
	for i, want := range msgs {
		got, err := readMessage(reader)
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		if string(got) != want {
			t.Fatalf("unexpected message %d: %s", i, got)
		}
	}
}

func TestReadMessageIgnoresOtherHeaders(t *testing.T) {
	raw := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\ncontent-length: 2\r\n\r\n{}"
	got, err := readMessage(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "{}" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestReadMessageRejectsBadHeaders(t *testing.T) {
	_, err := readMessage(bufio.NewReader(strings.NewReader("X-Other: 1\r\n\r\n{}")))
	if !errors.Is(err, errMissingContentLength) {
		t.Fatalf("expected missing length error, got %v", err)
	}
	if _, err := readMessage(bufio.NewReader(strings.NewReader("Content-Length: -4\r\n\r\n"))); err == nil {
		t.Fatal("expected error for negative length")
	}
	if _, err := readMessage(bufio.NewReader(strings.NewReader("Content-Length: 999999999999\r\n\r\n"))); err == nil {
		t.Fatal("expected error for oversized message")
	}
}
