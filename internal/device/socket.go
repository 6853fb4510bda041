package device

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultSocketPort = 9100
	socketConnectTimeout = 30 * time.Second
	socketPollGate       = 100 * time.Millisecond
)

// socketTransport backs the socket:// scheme: a blocking TCP connection
// to host:port (default 9100) with a 30s connect timeout and a 100ms
// poll gate on read (spec.md §4.A).
type socketTransport struct {
	conn net.Conn
}

func (t *socketTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }

func (t *socketTransport) Read(p []byte) (int, error) {
	_ = t.conn.SetReadDeadline(time.Now().Add(socketPollGate))
	n, err := t.conn.Read(p)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, nil
	}
	return n, err
}

func (t *socketTransport) Status() (Reasons, error) { return ReasonNone, nil }
func (t *socketTransport) ID() (string, error)      { return "", nil }
func (t *socketTransport) Close() error             { return t.conn.Close() }

func dialSocket(host string, port int) (net.Conn, error) {
	if port == 0 {
		port = defaultSocketPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return net.DialTimeout("tcp", addr, socketConnectTimeout)
}

func openSocket(u *url.URL, _ string, onError ErrorFunc) (*Handle, error) {
	host := u.Hostname()
	port := defaultSocketPort
	if p := u.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	conn, err := dialSocket(host, port)
	if err != nil {
		return nil, wrapOpenError("socket", u.String(), err)
	}
	return newHandle(u.String(), &socketTransport{conn: conn}, onError), nil
}
