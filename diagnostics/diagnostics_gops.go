//go:build gops
// +build gops

package diagnostics

import (
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"strconv"

	"github.com/apex/log"
	"github.com/google/gops/agent"
)

const pprofAddr = "localhost:6060"

func init() {
	ctx := log.WithField("context", "diagnostics")

	if err := agent.Listen(agent.Options{}); err != nil {
		ctx.Fatalf("Failed to start gops agent: %v", err)
	}

	pprofRequired := false

	if rate, ok := envInt(ctx, "BLOCK_PROFILE_RATE"); ok {
		runtime.SetBlockProfileRate(rate)
		pprofRequired = true
		ctx.Info("Block profiling enabled")
	}

	if fraction, ok := envInt(ctx, "MUTEX_PROFILE_FRACTION"); ok {
		runtime.SetMutexProfileFraction(fraction)
		pprofRequired = true
		ctx.Info("Mutex profiling enabled")
	}

	// gops can't capture block and mutex profiles
	if pprofRequired {
		go func() {
			ctx.Infof("Serve pprof at %s", pprofAddr)
			ctx.Warnf("pprof server stopped: %v", http.ListenAndServe(pprofAddr, nil)) // nolint:gosec
		}()
	}
}

func envInt(ctx *log.Entry, name string) (int, bool) {
	val := os.Getenv(name)

	if val == "" {
		return 0, false
	}

	res, err := strconv.Atoi(val)

	if err != nil {
		ctx.Fatalf("Invalid value for %s: %s", name, val)
	}

	return res, true
}
