package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
)

// SafeGo запускает горутину; паника логируется со стеком и не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverAndLog()
		fn()
	}()
}

// SafeGoWithContext то же, что SafeGo, но передаёт контекст в fn.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverAndLog()
		fn(ctx)
	}()
}

func recoverAndLog() {
	if r := recover(); r != nil {
		logger.Component("goroutine").WithField("stack", string(debug.Stack())).Errorf("Паника в горутине: %v", r)
	}
}
