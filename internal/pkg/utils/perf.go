package utils

import (
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// RunDebugEndpoint serves pprof handlers at port, does nothing if port <= 0
func RunDebugEndpoint(port int) {
	if port <= 0 {
		goapp.Log.Info().Msg("no debug.port, skip pprof endpoint")
		return
	}
	goapp.Log.Info().Int("port", port).Msg("starting pprof endpoint")
	srv := &http.Server{Addr: ":" + strconv.Itoa(port), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		goapp.Log.Error().Err(err).Msg("can't start pprof endpoint")
	}
}
