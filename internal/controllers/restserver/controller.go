// Package restserver exposes the engine's latest assessments over read-only
// HTTP endpoints.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/powdertrack/snowengine/internal/cycle"
	"github.com/powdertrack/snowengine/pkg/config"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	results  *cycle.ResultSet
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller serving the given
// result set.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTData, results *cycle.ResultSet, logger *zap.SugaredLogger) (*Controller, error) {
	if results == nil {
		return nil, fmt.Errorf("result set required for REST server")
	}

	ctrl := &Controller{
		ctx:     ctx,
		wg:      wg,
		results: results,
		logger:  logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to :8080")
		rc.ListenAddr = ":8080"
	}

	ctrl.Server.Addr = rc.ListenAddr
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 5 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/conditions", c.handlers.GetConditions).Methods(http.MethodGet)
	router.HandleFunc("/api/conditions/{location}", c.handlers.GetLocationConditions).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", c.handlers.GetStats).Methods(http.MethodGet)

	return router
}
