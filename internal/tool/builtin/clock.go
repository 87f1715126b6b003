package builtin

import (
	"context"
	"time"

	"github.com/wardlow/reeve-agent/internal/tool"
)

// Clock returns a tool that reports the current local time. The result
// is final: a time question needs no further steps.
func Clock() tool.Tool {
	return clockAt(time.Now)
}

func clockAt(now func() time.Time) tool.Tool {
	return tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{
			Success: true,
			Data:    now().Format("Monday, January 2, 2006 at 3:04 PM MST"),
			Final:   true,
		}
	})
}
