// Package testclient is a minimal FTP client used only by this
// repository's own integration tests: a sendCommand/expectCode shape
// plus PASV-tuple parsing, speaking the length-prefixed binary Reply
// format internal/transport uses on the control channel instead of RFC
// 959's raw "CODE text\r\n" lines, and limited to the commands this
// server implements.
package testclient

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/ftpd/ftpd/internal/transport"
)

// Client drives one control connection against an ftpd server for
// tests. It is not safe for concurrent use by multiple goroutines.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to addr and reads (but does not validate) the server's
// greeting reply.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn)}
	if _, err := c.ReadReply(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("testclient: reading greeting: %w", err)
	}
	return c, nil
}

// Close closes the control connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadReply reads one reply record without sending a command, for
// callers that expect more than one reply to a single request (e.g.
// RETR's 125 followed by a final 226/250/426 once the data channel
// closes).
func (c *Client) ReadReply() (transport.Reply, error) {
	return transport.RecvReply(c.r)
}

// Send writes one command line (without the trailing CRLF, which Send
// appends) and returns the server's reply.
func (c *Client) Send(line string) (transport.Reply, error) {
	if err := transport.SendRequest(c.conn, transport.Request{Payload: line}); err != nil {
		return transport.Reply{}, err
	}
	return c.ReadReply()
}

// Expect sends a command and fails with an error unless the reply code
// matches want.
func (c *Client) Expect(want uint16, line string) (transport.Reply, error) {
	reply, err := c.Send(line)
	if err != nil {
		return reply, err
	}
	if reply.Code != want {
		return reply, fmt.Errorf("testclient: %q got %d %q, want %d", line, reply.Code, reply.Payload, want)
	}
	return reply, nil
}

// Login runs the USER/PASS exchange, returning the final reply.
func (c *Client) Login(user, pass string) (transport.Reply, error) {
	if _, err := c.Expect(331, "USER "+user); err != nil {
		return transport.Reply{}, err
	}
	return c.Send("PASS " + pass)
}

var pasvTuple = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// Pasv issues PASV and dials the data connection it advertises,
// decoding the six-octet host/port tuple from the 227 reply text.
func (c *Client) Pasv() (net.Conn, error) {
	reply, err := c.Expect(227, "PASV")
	if err != nil {
		return nil, err
	}
	m := pasvTuple.FindStringSubmatch(reply.Payload)
	if len(m) != 7 {
		return nil, fmt.Errorf("testclient: unparseable PASV reply %q", reply.Payload)
	}
	octets := make([]int, 6)
	for i := range octets {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("testclient: bad PASV octet %q", m[i+1])
		}
		octets[i] = v
	}
	host := fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3])
	port := octets[4]*256 + octets[5]
	return net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
}

// RecvAll reads DataBlocks from conn until one carries the EOF
// descriptor bit, returning the concatenated payload.
func RecvAll(conn net.Conn) ([]byte, error) {
	var out []byte
	for {
		block, err := transport.RecvDataBlock(conn)
		if err != nil {
			return out, err
		}
		out = append(out, block.Data...)
		if block.EOF() {
			return out, nil
		}
	}
}

// SendAll writes data as a sequence of DataBlocks, marking the final
// one (even if empty) with the EOF descriptor bit.
func SendAll(conn net.Conn, data []byte) error {
	const chunk = transport.DataBlockMaxLen
	for {
		n := len(data)
		last := true
		if n > chunk {
			n = chunk
			last = false
		}
		descriptor := byte(0)
		if last {
			descriptor = transport.DescriptorEOF
		}
		if err := transport.SendDataBlock(conn, transport.DataBlock{Descriptor: descriptor, Data: data[:n]}); err != nil {
			return err
		}
		data = data[n:]
		if last {
			return nil
		}
	}
}
