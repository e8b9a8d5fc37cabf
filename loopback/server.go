package loopback

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-lane"
)

type (
	mainEngine struct {
		mu              sync.Mutex
		started         bool
		l               lane.Lane
		store           *cacheStore
		registry        *clientRegistry
		server          net.Listener
		cxns            []net.Conn
		exitSaver       chan struct{}
		saverTerminated chan struct{}
		canExit         chan struct{}
		terminating     bool
		port            int
		iface           string
		dispatcher      *cmdDispatcher
		directCs        *clientState
	}

	ServerOptions struct {
		// MaxSize is the cache capacity in bytes reported by stats; a value
		// larger than this is refused. 0 means unlimited.
		MaxSize uint64

		// Token, when set, must be presented with auth before any command
		// other than ping or auth is served.
		Token string

		// Policy is the initial eviction policy name; "" selects lfu.
		Policy paper.Policy

		// AppVersion is stamped into persisted data.
		AppVersion int
	}

	PaperServer interface {
		// Starts a socket server using the specified network interface and port,
		// persisting the cache to persistPath.
		//
		// If endpoint is "", the server will listen on all network interfaces.
		// If port is 0, the server will listen on port 3145.
		// If persistPath is "", data will be maintained in memory only,
		// otherwise it is loaded from and saved to persistPath plus ".db".
		//
		// Requests and responses use the paper binary frame format; see
		// paper_cmdline.Encode and paper_cmdline.EncodeResponse.
		StartServer(endpoint string, port int, persistPath string, opts ServerOptions) error

		// Initiates server termination, if it is running.
		StopServer() error

		// Waits for the server to stop
		WaitForTermination()

		// Returns the server address
		ServerAddr() string

		// Runs a command without a socket connection
		Dispatch(cmd paper.Command) (resp *paper.Response, err error)
	}
)

func NewServer(l lane.Lane) PaperServer {
	eng := mainEngine{
		l:        l,
		cxns:     []net.Conn{},
		registry: newClientRegistry(),
	}
	return &eng
}

func (eng *mainEngine) StartServer(endpoint string, port int, persistPath string, opts ServerOptions) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.started {
		return fmt.Errorf("already started")
	}

	if port != 0 {
		eng.port = port
	} else {
		eng.port = paper.DefaultPort
	}

	if endpoint != "" {
		eng.iface = endpoint
	}

	policy := opts.Policy
	if policy == "" {
		policy = paper.Policies[0]
	}

	store, err := newCacheStore(eng.l, persistPath, opts.AppVersion, opts.MaxSize, policy)
	if err != nil {
		return err
	}
	eng.store = store

	// signaled once termination completes
	eng.canExit = make(chan struct{})

	// launch periodic save goroutine
	eng.periodicSave()

	// start accepting connections and processing them
	err = eng.startServer(opts.Token)
	if err != nil {
		eng.stopSaver()
		return err
	}
	eng.started = true

	return nil
}

func (eng *mainEngine) StopServer() error {
	// ensure only one termination
	eng.mu.Lock()
	if !eng.started {
		eng.mu.Unlock()
		return fmt.Errorf("not started")
	}

	isTerminating := eng.terminating
	eng.terminating = true
	eng.mu.Unlock()

	if !isTerminating {
		go func() { eng.onTerminate() }()
	}

	return nil
}

func (eng *mainEngine) onTerminate() {
	if eng.server != nil {
		// close the server and wait for all active connections to finish
		eng.l.Tracef("closing server")
		eng.server.Close()

		eng.mu.Lock()
		for _, cxn := range eng.cxns {
			eng.l.Tracef("closing connection %s <-> %s", cxn.LocalAddr().String(), cxn.RemoteAddr().String())
			cxn.Close()
		}
		eng.cxns = []net.Conn{}
		eng.mu.Unlock()

		eng.l.Infof("waiting for any open request connections to complete")
		eng.registry.requestAllCxnClose()
		eng.registry.waitForAllCxnClose()
		eng.l.Infof("termination of %s completed", eng.server.Addr().String())
	}

	eng.stopSaver()

	eng.canExit <- struct{}{}
}

func (eng *mainEngine) periodicSave() {
	// make a periodic save that will also ensure save upon termination
	if eng.store.basePath != "" {
		eng.exitSaver = make(chan struct{})
		eng.saverTerminated = make(chan struct{})
		go func() {
			timer := time.NewTicker(time.Second)
			for {
				select {
				case <-eng.exitSaver:
					eng.l.Trace("saver loop is exiting")
					timer.Stop()
					eng.store.save(eng.l)
					eng.saverTerminated <- struct{}{}
					return
				case <-timer.C:
					eng.store.save(eng.l)
				}
			}
		}()
	}
}

func (eng *mainEngine) stopSaver() {
	// stop the periodic saver (if running)
	if eng.exitSaver != nil {
		eng.l.Tracef("closing cache saver")
		eng.exitSaver <- struct{}{}
		<-eng.saverTerminated
		eng.exitSaver = nil
		eng.l.Tracef("cache saver closed")
	}
}

func (eng *mainEngine) startServer(token string) error {
	// establish socket service
	var err error

	if eng.iface == "" {
		eng.iface = fmt.Sprintf(":%d", eng.port)
	} else {
		eng.iface = net.JoinHostPort(eng.iface, fmt.Sprintf("%d", eng.port))
	}

	eng.server, err = net.Listen("tcp", eng.iface)
	if err != nil {
		eng.l.Errorf("error listening: %s", err.Error())
		return err
	}
	eng.l.Infof("listening on %s", eng.server.Addr().String())

	eng.dispatcher = newCmdDispatcher(eng.store, token)

	go func() {
		// accept connections and process commands
		for {
			connection, err := eng.server.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					eng.l.Errorf("accept error: %s", err)
				}
				break
			}
			eng.mu.Lock()
			eng.cxns = append(eng.cxns, connection)
			eng.mu.Unlock()
			eng.l.Infof("client connected: %s", connection.RemoteAddr().String())
			newServerCxn(eng.l, connection, eng.dispatcher, eng.registry)
		}
	}()

	return nil
}

func (eng *mainEngine) WaitForTermination() {
	// wait for server to quiesque
	<-eng.canExit
	eng.l.Info("finished serving requests")
}

func (eng *mainEngine) ServerAddr() string {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.server == nil {
		return ""
	}

	return eng.server.Addr().String()
}

func (eng *mainEngine) Dispatch(cmd paper.Command) (resp *paper.Response, err error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.server == nil || eng.dispatcher == nil {
		err = errors.New("server not running")
		return
	}

	if !cmd.Op.IsWire() {
		err = fmt.Errorf("%s is not a server command", cmd.Op)
		return
	}

	if eng.directCs == nil {
		eng.directCs = newClientState(eng.l, nil, eng.dispatcher)
	}

	resp = eng.directCs.dispatch(cmd)
	return
}
