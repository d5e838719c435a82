package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"jira_bridge/internal/logger"
)

// Transport names accepted by --transport.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ServeOptions control how the MCP server is exposed.
type ServeOptions struct {
	Transport string
	Host      string
	Port      int
	Path      string // endpoint path for streamable-http
}

// Serve runs the MCP server on the selected transport and blocks until the
// transport stops or ctx is canceled. stdio serves a single client over the
// process pipes; the HTTP transports serve multiple concurrent IDE
// connections from one shared server.
func Serve(ctx context.Context, s *server.MCPServer, opts ServeOptions) error {
	switch opts.Transport {
	case TransportStdio, "":
		stdio := server.NewStdioServer(s)
		stdio.SetErrorLogger(zap.NewStdLog(logger.GetLogger()))
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case TransportSSE:
		sse := server.NewSSEServer(s)
		engine := newEngine()
		engine.GET("/sse", gin.WrapH(sse.SSEHandler()))
		engine.POST("/message", gin.WrapH(sse.MessageHandler()))
		return serveHTTP(ctx, engine, opts)
	case TransportStreamableHTTP:
		path := opts.Path
		if path == "" {
			path = "/mcp"
		}
		httpSrv := server.NewStreamableHTTPServer(s)
		engine := newEngine()
		engine.Any(path, gin.WrapH(httpSrv))
		return serveHTTP(ctx, engine, opts)
	default:
		return fmt.Errorf("unknown transport: %s", opts.Transport)
	}
}

// newEngine builds the shared gin engine for the HTTP transports.
func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.GinLogMiddleware())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

func serveHTTP(ctx context.Context, engine *gin.Engine, opts ServeOptions) error {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() {
		logger.GetLogger().Info("http transport listening",
			zap.String("addr", addr), zap.String("transport", opts.Transport))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
