package runtime

import (
	"chat-relay/domain/event"
	"log/slog"

	"github.com/mama165/sdk-go/logs"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// drain returns every event queued on the connection without blocking.
func drain(conn *Connection) []event.Outbound {
	var out []event.Outbound
	for {
		select {
		case o := <-conn.Outbox():
			out = append(out, o)
		default:
			return out
		}
	}
}

func names(outs []event.Outbound) []event.Name {
	res := make([]event.Name, 0, len(outs))
	for _, o := range outs {
		res = append(res, o.Event)
	}
	return res
}
