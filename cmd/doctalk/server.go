package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ppinheiro86/doctalk/internal/api"
	"github.com/ppinheiro86/doctalk/internal/auth"
	"github.com/ppinheiro86/doctalk/internal/blob"
	"github.com/ppinheiro86/doctalk/internal/chat"
	"github.com/ppinheiro86/doctalk/internal/config"
	"github.com/ppinheiro86/doctalk/internal/extract"
	"github.com/ppinheiro86/doctalk/internal/llm"
	"github.com/ppinheiro86/doctalk/internal/pipeline"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the doctalk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpUser, _ := cmd.Flags().GetString("mcp-user")
		return runServer(mcpUser)
	},
}

func init() {
	serveCmd.Flags().String("mcp-user", "", "email of the account the MCP stdio server acts for (empty disables MCP)")
}

func runServer(mcpUserEmail string) error {
	fmt.Fprintf(os.Stderr, "doctalk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	blobs, err := newBlobProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing blob storage: %w", err)
	}

	// Extraction pipeline: text layer first, OCR fallback for scans.
	engine := extract.NewEngine(
		extract.PDFText{},
		&extract.Poppler{DPI: cfg.Extract.DPI},
		&extract.Tesseract{Languages: cfg.Extract.Languages},
		extract.Options{PageWorkers: cfg.Extract.PageWorkers},
	)
	processor := pipeline.NewProcessor(store, blobs, engine)
	worker := pipeline.NewWorker(store, processor, 500*time.Millisecond)
	go worker.Run(ctx)

	completer := llm.NewWithBaseURL(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	orchestrator := chat.NewWithLimits(store, completer,
		cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)
	authSvc := auth.NewService(store, auth.NewHasher(cfg.Auth.PasswordPepper))

	handler := api.NewHandler(api.Deps{
		Store: store,
		Auth:  authSvc,
		Blobs: blobs,
		Chat:  orchestrator,
	})

	// MCP stdio transport, bound to one local account.
	if mcpUserEmail != "" {
		user, err := store.GetUserByEmail(mcpUserEmail)
		if err != nil {
			return fmt.Errorf("resolving MCP user %q: %w", mcpUserEmail, err)
		}
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:  store,
			Chat:   orchestrator,
			UserID: user.ID,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)", "user", mcpUserEmail)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "doctalk listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newBlobProvider(ctx context.Context, cfg config.Config) (blob.Provider, error) {
	switch cfg.Blob.Provider {
	case "minio":
		return blob.NewMinIO(ctx, blob.MinIOConfig{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
		})
	case "local", "":
		return blob.NewLocal(cfg.Blob.LocalDir)
	default:
		return nil, fmt.Errorf("unknown blob provider %q (supported: local, minio)", cfg.Blob.Provider)
	}
}
