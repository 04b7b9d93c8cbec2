// Package main runs the in-memory development backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskman/internal/devserver"
	"taskman/internal/gateway"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	clientID := flag.String("client-id", "dev-client-id", "OAuth client id reported to clients")
	redirect := flag.String("redirect-uri", "http://localhost:3000/", "OAuth redirect URI reported to clients")
	authorize := flag.String("authorize-url", "https://oauth.yandex.ru/authorize", "OAuth authorize URL reported to clients")
	flag.Parse()

	srv := devserver.New(gateway.ProviderConfig{
		ClientID:     *clientID,
		RedirectURI:  *redirect,
		AuthorizeURL: *authorize,
	})

	hs := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}()

	fmt.Fprintf(os.Stderr, "taskmand listening on %s\n", *addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
