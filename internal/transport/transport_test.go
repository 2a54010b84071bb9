package transport

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestReplyRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []Reply{
		{Code: 220, Payload: "FTP server ready."},
		{Code: 257, Payload: `"/pub" is the current directory.`},
		{Code: 250, Payload: ""},
	}
	for _, want := range tests {
		var buf bytes.Buffer
		if err := SendReply(&buf, want); err != nil {
			t.Fatalf("SendReply(%+v): %v", want, err)
		}
		got, err := RecvReply(&buf)
		if err != nil {
			t.Fatalf("RecvReply after SendReply(%+v): %v", want, err)
		}
		if got != want {
			t.Errorf("round-trip = %+v, want %+v", got, want)
		}
	}
}

func TestReplyTooLong(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := SendReply(&buf, Reply{Code: 250, Payload: strings.Repeat("x", ReplyMaxLen+1)})
	if err != ErrTooLong {
		t.Errorf("SendReply with oversized payload = %v, want ErrTooLong", err)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := SendRequest(&buf, Request{Payload: "USER alice\r\n"}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	got, err := RecvRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("RecvRequest: %v", err)
	}
	if got.Payload != "USER alice" {
		t.Errorf("RecvRequest payload = %q, want %q", got.Payload, "USER alice")
	}
}

func TestRecvRequestMissingCrlfIsFraming(t *testing.T) {
	t.Parallel()
	r := bufio.NewReader(strings.NewReader("USER alice"))
	if _, err := RecvRequest(r); err != ErrFraming {
		t.Errorf("RecvRequest without CRLF = %v, want ErrFraming", err)
	}
}

func TestRecvRequestTooLong(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", RequestMaxLen+10) + "\r\n"
	r := bufio.NewReader(strings.NewReader(line))
	if _, err := RecvRequest(r); err != ErrTooLong {
		t.Errorf("RecvRequest with oversized line = %v, want ErrTooLong", err)
	}
}

func TestDataBlockRoundTrip(t *testing.T) {
	t.Parallel()
	want := DataBlock{Descriptor: DescriptorEOF, Data: []byte("hello, ftp")}
	var buf bytes.Buffer
	if err := SendDataBlock(&buf, want); err != nil {
		t.Fatalf("SendDataBlock: %v", err)
	}
	got, err := RecvDataBlock(&buf)
	if err != nil {
		t.Fatalf("RecvDataBlock: %v", err)
	}
	if !bytes.Equal(got.Data, want.Data) || got.Descriptor != want.Descriptor {
		t.Errorf("round-trip = %+v, want %+v", got, want)
	}
	if !got.EOF() {
		t.Error("EOF() = false, want true for DescriptorEOF block")
	}
}

func TestDataBlockTooLong(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := SendDataBlock(&buf, DataBlock{Data: make([]byte, DataBlockMaxLen+1)})
	if err != ErrTooLong {
		t.Errorf("SendDataBlock with oversized data = %v, want ErrTooLong", err)
	}
}
