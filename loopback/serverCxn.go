package loopback

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-lane"
)

// The following connection state machine progresses through the lifecycle
// of a client connection. A client processes only one command at a
// time.
const (
	csNone            cxnState = iota
	csInitialize               // can progress to csWaitForCommand or csTerminate
	csWaitForCommand           // can progress to csDispatchCommand or csTerminate
	csDispatchCommand          // can progress to csTerminate on an interruption, or csWaitForCommand after command processing is complete
	csTerminate                // closes the client
)

type (
	cxnState int

	cxnStateEvent struct {
		newState  cxnState
		eventData any
	}

	// serverCxn holds state about the socket connection. It links
	// 1-to-1 to a clientState instance.
	serverCxn struct {
		cs          *clientState
		registry    *clientRegistry
		started     time.Time
		mu          sync.Mutex // synchronizes access to waiting, closing flags
		cxn         net.Conn
		socketState cxnState
		csceCh      chan *cxnStateEvent
		waiting     bool
		closing     bool
		inbound     []byte
	}
)

func newServerCxn(l lane.Lane, cxn net.Conn, dispatcher *cmdDispatcher, registry *clientRegistry) *serverCxn {
	sc := &serverCxn{
		cxn:         cxn,
		registry:    registry,
		started:     time.Now(),
		socketState: csNone,
		csceCh:      make(chan *cxnStateEvent, 3),
	}

	sc.cs = newClientState(l, sc, dispatcher)
	registry.register(sc.cs)

	sc.queueStateChange(csInitialize, nil)

	go sc.run()

	return sc
}

func (sc *serverCxn) ClientInfo() []string {
	since := time.Since(sc.started)
	return []string{
		"addr=" + sc.cxn.RemoteAddr().String(),
		"laddr=" + sc.cxn.LocalAddr().String(),
		"age=" + fmt.Sprintf("%d", int64(since.Seconds())),
	}
}

func (sc *serverCxn) queueStateChange(newState cxnState, eventData any) {
	sc.csceCh <- &cxnStateEvent{
		newState:  newState,
		eventData: eventData,
	}
}

// request connection close
func (sc *serverCxn) RequestClose() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.closing {
		sc.closing = true
		if sc.waiting {
			// in a blocking read, close the socket
			sc.cxn.Close()
		}
		sc.queueStateChange(csTerminate, nil)
	}
}

func (sc *serverCxn) IsCloseRequested() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.closing
}

func (sc *serverCxn) run() {
	for {
		event := <-sc.csceCh

		sc.socketState = event.newState
		switch sc.socketState {
		case csInitialize:
			sc.onInitialize()
		case csTerminate:
			sc.onTerminate()
			sc.cs.l.Tracef("client %d at %s terminated", sc.cs.id, sc.cxn.RemoteAddr().String())
			return
		case csWaitForCommand:
			if sc.IsCloseRequested() {
				sc.queueStateChange(csTerminate, nil)
			} else {
				sc.onWaitForCommand()
			}
		case csDispatchCommand:
			sc.onDispatchCommand(event.eventData.(paper.Command))
		}
	}
}

func (sc *serverCxn) onTerminate() {
	sc.cxn.Close()
	sc.registry.unregister(sc.cs)
}

func (sc *serverCxn) onInitialize() {
	sc.queueStateChange(csWaitForCommand, nil)
}

func (sc *serverCxn) onWaitForCommand() {
	// a pipelining client may already have sent the next frame
	if sc.nextCommand() {
		return
	}

	buffer := make([]byte, 1024*8)

	sc.mu.Lock()
	sc.waiting = true
	sc.mu.Unlock()

	n, err := sc.cxn.Read(buffer)

	sc.mu.Lock()
	sc.waiting = false
	sc.mu.Unlock()

	if err != nil {
		if !errors.Is(err, io.EOF) {
			sc.cs.l.Debugf("read error from %s: %s", sc.cxn.RemoteAddr().String(), err)
		} else {
			sc.cs.l.Infof("client disconnected: %s", sc.cxn.RemoteAddr().String())
		}
		sc.queueStateChange(csTerminate, nil)
		return
	}

	sc.inbound = append(sc.inbound, buffer[0:n]...)

	sc.cs.l.Tracef("received %d bytes of command data from client", len(sc.inbound))

	if !sc.nextCommand() {
		sc.queueStateChange(csWaitForCommand, nil)
	}
}

// nextCommand moves to csDispatchCommand or csTerminate when the inbound
// bytes hold a whole frame or a bad one. It returns false when more data
// is needed.
func (sc *serverCxn) nextCommand() bool {
	if len(sc.inbound) == 0 {
		return false
	}

	cmd, length, err := paper.DecodeCommand(sc.inbound)
	if err != nil {
		if errors.Is(err, paper.ErrIncompleteFrame) {
			return false
		}
		sc.cs.l.Infof("malformed command sent from client - terminating: %s", err)
		sc.queueStateChange(csTerminate, nil)
		return true
	}

	sc.inbound = sc.inbound[length:]
	sc.queueStateChange(csDispatchCommand, cmd)
	return true
}

func (sc *serverCxn) onDispatchCommand(cmd paper.Command) {
	go func() {
		resp := sc.cs.dispatch(cmd)

		n, err := sc.cxn.Write(paper.EncodeResponse(cmd, resp))
		if err != nil {
			sc.cs.l.Debugf("write error: %s", err)
			sc.cxn.Close()
			sc.queueStateChange(csTerminate, nil)
		} else {
			sc.cs.l.Tracef("wrote %d bytes", n)
			sc.queueStateChange(csWaitForCommand, nil)
		}
	}()
}

func (sc *serverCxn) ServerAddr() string {
	return sc.cxn.LocalAddr().String()
}

func (sc *serverCxn) ClientAddr() string {
	return sc.cxn.RemoteAddr().String()
}
