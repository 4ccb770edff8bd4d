// cmd/credentials-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryit/internal/credapi"
	"tryit/pkg/broker"
	"tryit/pkg/config"
	"tryit/pkg/credentials"
	"tryit/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	tokens := broker.New(httpClient, log)

	// Credential sources in resolution order: identity provider first so
	// centrally rotated credentials win, then the optional workspace file,
	// then flat configuration.
	var sources []credentials.Source
	if cfg.IDPConfigured() {
		sources = append(sources, credentials.NewIdPSource(cfg, tokens, httpClient, log))
	} else {
		log.Infow("identity-provider source disabled (admin settings not configured)")
	}
	if cfg.WorkspacesFile != "" {
		fs, err := credentials.NewFileSource(cfg.WorkspacesFile, log)
		if err != nil {
			log.Warnw("workspaces file skipped", "path", cfg.WorkspacesFile, "err", err)
		} else {
			sources = append(sources, fs)
		}
	}
	sources = append(sources, credentials.NewEnvSource())
	chain := credentials.NewChain(cfg, log, sources...)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: credapi.NewServer(cfg, log, chain).Router()}
	go func() {
		log.Infow("credentials-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("credentials-service stopped")
}
