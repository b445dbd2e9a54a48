package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rexlx/lrmsforum/forum"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "forum: ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	logger.Printf("Connected to %s database.", cfg.Driver)

	uploads, err := forum.NewUploads(cfg.UploadDir)
	if err != nil {
		return err
	}

	var store scs.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("could not reach redis: %w", err)
		}
		store = forum.NewRedisStore(client)
		logger.Println("Storing sessions in redis.")
	}

	handlers := forum.NewHandlers(db, uploads, forum.NewSessionManager(store, cfg.Production), logger)
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	handlers.RegisterStatic(mux, cfg.PublicDir)

	listen := cfg.Addr
	if addr != "" {
		listen = addr
	}
	svr := &http.Server{
		Addr:              listen,
		Handler:           handlers.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Printf("Starting forum server on %s", listen)
		errc <- svr.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Println("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svr.Shutdown(shutdownCtx)
}
