// Package gateway serves FileService to browsers: chunk transfer over
// WebSocket, metadata over REST, plus health and Prometheus endpoints.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxFrameSize bounds a single WebSocket frame. Chunks are at most a few
// tens of KiB, base64 and JSON overhead included.
const maxFrameSize = 4 << 20

type Options struct {
	AllowOrigins []string
	Metrics      *metrics.Metrics
}

type Gateway struct {
	address   string
	files     *services.FileService
	logger    logging.Logger
	jwtSecret []byte
	opts      Options
	upgrader  websocket.Upgrader
}

func New(address string, l logging.Logger, fs *services.FileService, secretKey string, opts Options) *Gateway {
	g := &Gateway{
		address:   address,
		files:     fs,
		logger:    l.With("module", "gateway"),
		jwtSecret: []byte(secretKey),
		opts:      opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 << 10,
		WriteBufferSize: 32 << 10,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) allowAll() bool {
	return slices.Contains(g.opts.AllowOrigins, "*")
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || g.allowAll() || slices.Contains(g.opts.AllowOrigins, origin)
}

func (g *Gateway) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if g.allowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = g.opts.AllowOrigins
	}
	return cfg
}

// Handler builds the router.
func (g *Gateway) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), g.requestLogger())
	if len(g.opts.AllowOrigins) > 0 {
		r.Use(cors.New(g.corsConfig()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if g.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	authed := r.Group("/", g.identity())

	ws := authed.Group("/ws")
	ws.GET("/upload", g.wsUpload)
	ws.GET("/download", g.wsDownload)

	files := authed.Group("/api")
	files.GET("/files", g.listOwned)
	files.POST("/files/plan", g.plan)
	files.GET("/files/:id", g.getFile)
	files.PATCH("/files/:id", g.rename)
	files.DELETE("/files/:id", g.deleteFile)
	files.POST("/files/:id/plan", g.plan)
	files.GET("/files/:id/descriptors", g.descriptors)
	files.GET("/files/:id/versions", g.versions)
	files.PUT("/files/:id/access", g.updateAccess)
	files.GET("/shared", g.sharedWithMe)
	files.GET("/search", g.search)

	return r
}

func (g *Gateway) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              g.address,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		g.logger.Info(ctx, "Stopping HTTP gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	g.logger.Info(ctx, "Starting HTTP gateway", "address", g.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
