package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// NewRouter builds the REST API with profiling, CORS and metrics.
func NewRouter(config models.ServerConfig, handlers *Handlers) *gin.Engine {
	r := gin.Default()

	// Profiler
	pprof.Register(r)

	// Setup CORS
	r.Use(CORS(config.AllowOrigins))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	AddRoutes(r, handlers)
	return r
}

// StartServer serves the API until ctx is done, then shuts down
// gracefully.
func StartServer(ctx context.Context, config models.ServerConfig, handlers *Handlers) error {
	server := &http.Server{
		Addr:    ":" + config.Port,
		Handler: NewRouter(config, handlers),
	}
	errs := make(chan error, 1)
	go func() {
		log.Log.Info("http.StartServer(): listening on " + server.Addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Log.Error("http.StartServer(): " + err.Error())
		return err
	}
	log.Log.Info("http.StartServer(): stopped")
	return nil
}
