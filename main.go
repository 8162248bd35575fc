// Command gsp-board runs hot-seat board matches.
//
// Subcommands:
//   - serve (default): HTTP server with the REST API, WebSocket push and an /mcp endpoint
//   - mcp: MCP stdio server; reuses a running API server or starts an internal one
//   - play: plays a match in the terminal, passing the keyboard between players
//
// Settings come from the environment (GSP_HOST, GSP_PORT, GSP_CONFIG_DIR, GSP_DEBUG,
// NGROK_AUTHTOKEN, NGROK_DOMAIN), optionally loaded from a .env file, and flags
// override them. With NGROK_AUTHTOKEN set, serve also opens an ngrok tunnel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/gsp-board/api"
	"github.com/wricardo/gsp-board/game/config"
	"github.com/wricardo/gsp-board/game/service"
	"github.com/wricardo/gsp-board/game/session"
	"github.com/wricardo/gsp-board/transport/mcp"
	"github.com/wricardo/gsp-board/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "GSP Board Server"
)

const (
	// matches idle longer than this are dropped
	sessionMaxAge   = 24 * time.Hour
	cleanupInterval = time.Hour
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "HTTP server host (GSP_HOST)"},
		&cli.IntFlag{Name: "port", Usage: "HTTP server port (GSP_PORT)"},
		&cli.StringFlag{Name: "config-dir", Usage: "Directory containing match configurations (GSP_CONFIG_DIR)"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging (GSP_DEBUG)"},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "gsp-board",
		Usage:   AppName,
		Version: Version,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			settings, err := settingsFrom(cmd)
			if err != nil {
				return err
			}
			return runServe(ctx, settings, newLogger(settings.Debug, os.Stderr))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags: append(serverFlags(),
					&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain, needs NGROK_AUTHTOKEN (NGROK_DOMAIN)"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := settingsFrom(cmd)
					if err != nil {
						return err
					}
					return runServe(ctx, settings, newLogger(settings.Debug, os.Stderr))
				},
			},
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server",
				Flags: append(serverFlags(),
					&cli.StringFlag{Name: "api-url", Usage: "REST API to proxy (default: check host:port, else start an internal server)"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := settingsFrom(cmd)
					if err != nil {
						return err
					}
					// stdout carries the protocol
					return runStdioMCP(ctx, settings, cmd.String("api-url"), newLogger(settings.Debug, os.Stderr))
				},
			},
			{
				Name:      "play",
				Usage:     "Play a hot-seat match in the terminal",
				ArgsUsage: "[config_id]",
				Flags: append(serverFlags(),
					&cli.IntFlag{Name: "seed", Usage: "Die seed for a repeatable match (0 is random)"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := settingsFrom(cmd)
					if err != nil {
						return err
					}
					logger := newLogger(settings.Debug, os.Stderr)
					return runPlay(ctx, settings, cmd.Args().First(), uint64(cmd.Int("seed")), os.Stdin, os.Stdout, logger)
				},
			},
		},
	}
}

// settingsFrom reads the environment and applies any flags that were set
func settingsFrom(cmd *cli.Command) (config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return settings, err
	}
	if cmd.IsSet("host") {
		settings.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		settings.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("config-dir") {
		settings.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("debug") {
		settings.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok-domain") {
		settings.NgrokDomain = cmd.String("ngrok-domain")
	}
	return settings, nil
}

func newLogger(debug bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// initializeServices wires the config and session managers into the game service
func initializeServices(settings config.Settings, notifier service.Notifier, logger *slog.Logger, opts ...session.Option) (service.GameService, *session.Manager, error) {
	configManager, err := config.NewManager(settings.ConfigDir, logger.With("component", "config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	opts = append([]session.Option{
		session.WithDisplay(service.DisplayFor(notifier)),
		session.WithLogger(logger),
	}, opts...)
	sessionManager := session.NewManager(opts...)

	gameService := service.NewGameService(sessionManager, configManager, notifier, logger.With("component", "service"))
	return gameService, sessionManager, nil
}

// newRouter mounts the API at root and the MCP JSON-RPC endpoint at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runServe starts the HTTP server, the WebSocket hub, match cleanup and the
// optional ngrok tunnel, and stops them all on SIGINT or SIGTERM
func runServe(ctx context.Context, settings config.Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(logger)
	gameService, sessions, err := initializeServices(settings, hub, logger)
	if err != nil {
		return err
	}

	addr := settings.Addr()
	apiServer := api.NewServer(gameService, hub, logger)
	handler := newRouter(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting", "app", AppName, "version", Version, "addr", addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"api", "http://"+addr+"/api",
			"websocket", "ws://"+addr+"/ws?match=<match_id>",
			"mcp", "http://"+addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupRoutine(gctx, sessions, cleanupInterval, logger)
		return nil
	})

	if settings.UseNgrok() {
		g.Go(func() error {
			return serveNgrok(gctx, settings, handler, logger)
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// cleanupRoutine periodically drops matches nobody has touched within sessionMaxAge
func cleanupRoutine(ctx context.Context, manager *session.Manager, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logger.Info("cleaned up expired matches", "removed", removed)
			}
		}
	}
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is cancelled.
// Tunnel failures are logged and do not stop the local server.
func serveNgrok(ctx context.Context, settings config.Settings, handler http.Handler, logger *slog.Logger) error {
	var tunnel ngrokConfig.Tunnel
	if settings.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.NgrokDomain))
		logger.Info("using custom ngrok domain", "domain", settings.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.NgrokToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"websocket", ngrokURL+"/ws?match=<match_id>",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		logger.Warn("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// runStdioMCP runs an MCP stdio server against apiURL. Without one it checks the
// configured address and, if nothing answers, serves an internal API on a random
// loopback port.
func runStdioMCP(ctx context.Context, settings config.Settings, apiURL string, logger *slog.Logger) error {
	if apiURL == "" {
		external := "http://" + settings.Addr()
		if apiAvailable(ctx, external) {
			logger.Info("using external API server", "url", external)
			apiURL = external
		}
	}

	if apiURL == "" {
		internal, shutdown, err := startInternalAPI(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		apiURL = internal
	}

	mcpClient := mcp.NewClient(apiURL)
	logger.Info("MCP stdio server ready", "api", apiURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the REST API on 127.0.0.1 with a random port
func startInternalAPI(ctx context.Context, settings config.Settings, logger *slog.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	gameService, _, err := initializeServices(settings, hub, logger)
	if err != nil {
		cancel()
		listener.Close()
		return "", nil, err
	}

	httpServer := &http.Server{Handler: api.NewServer(gameService, hub, logger)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", "error", err)
		}
	}()

	addr := listener.Addr().String()
	logger.Info("started internal HTTP server", "addr", addr)

	shutdown := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}
	return "http://" + addr, shutdown, nil
}
