package loopback

import (
	"crypto/subtle"
	"fmt"

	paper "github.com/jimsnab/go-paper-cmdline"
)

const ServerVersion = "1.0.0"

func fnPing(ctx *cmdContext) *paper.Response {
	return success("pong")
}

func fnVersion(ctx *cmdContext) *paper.Response {
	return success("paper-loopback v" + ServerVersion)
}

// fnAuth accepts any token when the server has none configured.
func fnAuth(ctx *cmdContext) *paper.Response {
	if ctx.cd.token == "" {
		ctx.cs.setAuthenticated(true)
		return success(replyDone)
	}

	if subtle.ConstantTimeCompare([]byte(ctx.cmd.Token), []byte(ctx.cd.token)) != 1 {
		ctx.cs.setAuthenticated(false)
		return failure(replyUnauthorized)
	}

	ctx.cs.setAuthenticated(true)
	return success(replyDone)
}

func fnGet(ctx *cmdContext) *paper.Response {
	value, found := ctx.store.get(ctx.cmd.Key, true)
	if !found {
		return failure(replyKeyNotFound)
	}
	return success(string(value))
}

func fnPeek(ctx *cmdContext) *paper.Response {
	value, found := ctx.store.get(ctx.cmd.Key, false)
	if !found {
		return failure(replyKeyNotFound)
	}
	return success(string(value))
}

func fnSet(ctx *cmdContext) *paper.Response {
	if err := ctx.store.set(ctx.cmd.Key, []byte(ctx.cmd.Value), ctx.cmd.Ttl); err != nil {
		return failure(err.Error())
	}
	return success(replyDone)
}

func fnDel(ctx *cmdContext) *paper.Response {
	if !ctx.store.del(ctx.cmd.Key) {
		return failure(replyKeyNotFound)
	}
	return success(replyDone)
}

func fnHas(ctx *cmdContext) *paper.Response {
	return success(fmt.Sprintf("%t", ctx.store.has(ctx.cmd.Key)))
}

func fnTtl(ctx *cmdContext) *paper.Response {
	if !ctx.store.setTtl(ctx.cmd.Key, ctx.cmd.Ttl) {
		return failure(replyKeyNotFound)
	}
	return success(replyDone)
}

func fnSize(ctx *cmdContext) *paper.Response {
	size, found := ctx.store.size(ctx.cmd.Key)
	if !found {
		return failure(replyKeyNotFound)
	}
	return success(fmt.Sprintf("%d", size))
}

func fnWipe(ctx *cmdContext) *paper.Response {
	ctx.store.wipe(ctx.l)
	return success(replyDone)
}

func fnResize(ctx *cmdContext) *paper.Response {
	if ctx.cmd.Size == 0 {
		return failure(paper.ErrInvalidCacheSize.Error())
	}
	ctx.store.resize(ctx.cmd.Size)
	return success(replyDone)
}

func fnPolicy(ctx *cmdContext) *paper.Response {
	ctx.store.setPolicy(ctx.cmd.Policy)
	return success(replyDone)
}

func fnStats(ctx *cmdContext) *paper.Response {
	stats := ctx.store.stats()
	return &paper.Response{OK: true, Stats: stats, Message: stats.Report()}
}
