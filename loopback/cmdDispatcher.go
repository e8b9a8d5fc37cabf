package loopback

import (
	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-lane"
)

const (
	replyDone         = "done"
	replyKeyNotFound  = "key not found"
	replyUnauthorized = "unauthorized"
)

type (
	cmdHandler func(ctx *cmdContext) *paper.Response

	cmdDispatcher struct {
		store    *cacheStore
		token    string
		handlers map[paper.Op]cmdHandler
	}

	cmdContext struct {
		l     lane.Lane
		cd    *cmdDispatcher
		cs    *clientState
		store *cacheStore
		cmd   paper.Command
	}
)

func newCmdDispatcher(store *cacheStore, token string) *cmdDispatcher {
	cd := &cmdDispatcher{
		store:    store,
		token:    token,
		handlers: map[paper.Op]cmdHandler{},
	}

	cd.handlers[paper.OpPing] = fnPing
	cd.handlers[paper.OpVersion] = fnVersion
	cd.handlers[paper.OpAuth] = fnAuth

	cd.handlers[paper.OpGet] = fnGet
	cd.handlers[paper.OpSet] = fnSet
	cd.handlers[paper.OpDel] = fnDel

	cd.handlers[paper.OpHas] = fnHas
	cd.handlers[paper.OpPeek] = fnPeek
	cd.handlers[paper.OpTtl] = fnTtl
	cd.handlers[paper.OpSize] = fnSize

	cd.handlers[paper.OpWipe] = fnWipe
	cd.handlers[paper.OpResize] = fnResize
	cd.handlers[paper.OpPolicy] = fnPolicy
	cd.handlers[paper.OpStats] = fnStats

	return cd
}

// requiresAuth reports whether op is refused until the client authenticates.
func (cd *cmdDispatcher) requiresAuth(op paper.Op) bool {
	if cd.token == "" {
		return false
	}
	return op != paper.OpPing && op != paper.OpAuth
}

func (cd *cmdDispatcher) dispatchHandler(l lane.Lane, cs *clientState, cmd paper.Command) (resp *paper.Response) {
	l.Tracef("request: %s", cmd)

	handler, exists := cd.handlers[cmd.Op]
	switch {
	case !exists:
		resp = failure("unsupported command")

	case cd.requiresAuth(cmd.Op) && !cs.isAuthenticated():
		resp = failure(replyUnauthorized)

	default:
		ctx := &cmdContext{
			l:     l,
			cd:    cd,
			cs:    cs,
			store: cd.store,
			cmd:   cmd,
		}
		resp = handler(ctx)
	}

	if resp.Stats == nil {
		l.Tracef("response: ok=%t %q", resp.OK, resp.Message)
	} else {
		l.Tracef("response: ok=%t stats", resp.OK)
	}
	return
}

func success(message string) *paper.Response {
	return &paper.Response{OK: true, Message: message}
}

func failure(message string) *paper.Response {
	return &paper.Response{OK: false, Message: message}
}
