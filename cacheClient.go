package paper_cmdline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jimsnab/go-lane"
)

type (
	// CacheClient is one TCP connection to a paper cache server. Commands
	// are sent one at a time; Send blocks until the matching response or a
	// connection failure.
	CacheClient struct {
		l       lane.Lane
		addr    string
		cxn     net.Conn
		inbound *bufio.Reader
		timeout time.Duration
	}
)

func ServerAddress(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}

// Dial connects to addr. timeout bounds the connection attempt and each
// later response wait; zero means no limit.
func Dial(l lane.Lane, addr string, timeout time.Duration) (cc *CacheClient, err error) {
	dialer := net.Dialer{Timeout: timeout}
	cxn, err := dialer.Dial("tcp", addr)
	if err != nil {
		l.Debugf("can't connect to %s: %s", addr, err)
		return
	}

	if tcp, ok := cxn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	l.Infof("connected to %s", cxn.RemoteAddr().String())

	cc = newCacheClient(l, cxn, addr, timeout)
	return
}

func newCacheClient(l lane.Lane, cxn net.Conn, addr string, timeout time.Duration) *CacheClient {
	return &CacheClient{
		l:       l,
		addr:    addr,
		cxn:     cxn,
		inbound: bufio.NewReader(cxn),
		timeout: timeout,
	}
}

func (cc *CacheClient) Addr() string {
	return cc.addr
}

// Send writes cmd and waits for its response. Any read or write failure
// means the connection is unusable and returns ErrDisconnected. A response
// that arrives but cannot be decoded returns ErrInternal and also closes
// the connection.
func (cc *CacheClient) Send(cmd Command) (resp *Response, err error) {
	if cc.cxn == nil {
		return nil, ErrDisconnected
	}

	req := Encode(cmd)
	if req == nil {
		return nil, internalError("%s is not sent to the server", cmd.Op)
	}

	cc.l.Tracef("sending %s (%d bytes)", cmd, len(req))

	if cc.timeout > 0 {
		cc.cxn.SetDeadline(time.Now().Add(cc.timeout))
	}

	n, err := cc.cxn.Write(req)
	if err != nil {
		cc.l.Debugf("write error to %s: %s", cc.addr, err)
		return nil, ErrDisconnected
	}
	if n != len(req) {
		cc.l.Debugf("%d bytes sent of %d", n, len(req))
		return nil, ErrDisconnected
	}

	resp, err = ReadResponse(cc.inbound, cmd)
	if err != nil {
		if errors.Is(err, ErrInternal) {
			// the rest of the bad frame is still unread, so later responses
			// cannot be found in the stream
			cc.l.Errorf("bad %s response from %s, dropping connection: %s", cmd.Op, cc.addr, err)
			cc.Close()
			return nil, err
		}

		if !errors.Is(err, io.EOF) && !strings.HasSuffix(err.Error(), "use of closed network connection") {
			cc.l.Debugf("read error from %s: %s", cc.addr, err)
		} else {
			cc.l.Infof("server disconnected: %s", cc.addr)
		}
		return nil, ErrDisconnected
	}

	cc.l.Tracef("received %s response, ok=%t", cmd.Op, resp.OK)
	return
}

// Connected is false once the connection is closed, by Close or after a
// bad response.
func (cc *CacheClient) Connected() bool {
	return cc.cxn != nil
}

func (cc *CacheClient) Close() error {
	if cc.cxn == nil {
		return nil
	}

	err := cc.cxn.Close()
	cc.cxn = nil
	return err
}
