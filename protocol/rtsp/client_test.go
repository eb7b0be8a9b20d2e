/*
NAME
  client_test.go

DESCRIPTION
  client_test.go provides a minimal RTSP client for forming and sending
  requests to the server under test, see https://tools.ietf.org/html/rfc7826

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// Minimum response size to be considered valid in bytes.
const minResponse = 12

var errInvalidResponse = errors.New("invalid response")

// client describes an RTSP client.
type client struct {
	cSeq int
	url  *url.URL
	conn net.Conn
	r    *bufio.Reader
}

// newClient parses addr and connects to the RTSP server it names.
func newClient(addr string) (*client, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	return &client{url: u, conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the RTSP connection.
func (c *client) Close() error {
	return c.conn.Close()
}

// response describes an RTSP response.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options sends an OPTIONS request.
func (c *client) Options() (*response, error) {
	return c.do("OPTIONS", nil)
}

// Describe sends a DESCRIBE request.
func (c *client) Describe() (*response, error) {
	return c.do("DESCRIBE", map[string]string{"Accept": "application/sdp"})
}

// do sends a request of method with the given headers and reads the
// response.
func (c *client) do(method string, header map[string]string) (*response, error) {
	c.cSeq++
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s RTSP/1.0\r\n", method, c.url.String())
	fmt.Fprintf(&b, "CSeq: %d\r\n", c.cSeq)
	for k, v := range header {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(c.conn, b.String())
	if err != nil {
		return nil, err
	}
	return readResponse(c.r)
}

// readResponse reads an RTSP response, including any body, from r.
func readResponse(r *bufio.Reader) (*response, error) {
	tp := textproto.NewReader(r)
	s, err := tp.ReadLine()
	if err != nil {
		return nil, err
	}
	if len(s) < minResponse || !strings.HasPrefix(s, "RTSP/") {
		return nil, errInvalidResponse
	}

	resp := &response{}
	var major, minor int
	n, err := fmt.Sscanf(s[5:], "%d.%d %d", &major, &minor, &resp.StatusCode)
	if err != nil || n != 3 {
		return nil, fmt.Errorf("could not Sscanf response, error: %w", err)
	}

	h, err := tp.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	resp.Header = http.Header(h)

	length, _ := strconv.Atoi(resp.Header.Get("Content-Length"))
	if length > 0 {
		resp.Body = make([]byte, length)
		_, err = io.ReadFull(r, resp.Body)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}
