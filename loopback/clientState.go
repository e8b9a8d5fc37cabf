package loopback

import (
	"sync"
	"time"

	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-lane"
)

type (
	// paperClient is the transport behind a clientState. Commands run
	// through PaperServer.Dispatch have none.
	paperClient interface {
		ClientInfo() []string
		RequestClose()
		IsCloseRequested() bool
		ServerAddr() string
		ClientAddr() string
	}

	// clientState holds all state associated with processing commands. A
	// client processes one command at a time.
	clientState struct {
		l             lane.Lane
		mu            sync.Mutex
		id            int64
		client        paperClient
		disp          *cmdDispatcher
		authenticated bool
	}

	clientRegistry struct {
		mu       sync.Mutex
		clientId int64
		clients  map[int64]*clientState
	}
)

func newClientState(l lane.Lane, client paperClient, dispatcher *cmdDispatcher) *clientState {
	return &clientState{
		l:      l,
		client: client,
		disp:   dispatcher,
	}
}

func (cs *clientState) dispatch(cmd paper.Command) *paper.Response {
	return cs.disp.dispatchHandler(cs.l, cs, cmd)
}

func (cs *clientState) isAuthenticated() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.authenticated
}

func (cs *clientState) setAuthenticated(authenticated bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.authenticated = authenticated
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{
		clients: map[int64]*clientState{},
	}
}

func (cr *clientRegistry) register(cs *clientState) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.clientId++
	cs.id = cr.clientId
	cr.clients[cs.id] = cs
}

func (cr *clientRegistry) unregister(cs *clientState) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	delete(cr.clients, cs.id)
}

func (cr *clientRegistry) isClientActive() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	return len(cr.clients) > 0
}

func (cr *clientRegistry) processAllClients(op func(id int64, cs *clientState)) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	for id, cs := range cr.clients {
		if cs.client != nil && !cs.client.IsCloseRequested() {
			op(id, cs)
		}
	}
}

func (cr *clientRegistry) requestAllCxnClose() {
	cr.processAllClients(func(id int64, cs *clientState) {
		cs.l.Tracef("closing client %d: %v", id, cs.client.ClientInfo())
		cs.client.RequestClose()
	})
}

func (cr *clientRegistry) waitForAllCxnClose() {
	for {
		if !cr.isClientActive() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
}
