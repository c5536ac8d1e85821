// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/vejviser/services/gateway"
)

// shutdownTimeout bounds the drain of in-flight requests on SIGTERM.
const shutdownTimeout = 10 * time.Second

// runServe starts the HTTP gateway and blocks until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	pipeline, logger, err := newPipeline("gateway")
	if err != nil {
		return err
	}
	defer logger.Close()
	defer pipeline.Close()

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Warm the catalog; a failed prefetch means degraded serving, not a
	// dead server.
	prefetchCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := pipeline.Start(prefetchCtx); err != nil {
		logger.Warn("catalog prefetch failed, serving degraded", "error", err)
	}
	cancel()

	handlers := gateway.NewHandlers(pipeline, logger.Slog())
	router := gateway.NewRouter(handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vejviser gateway listening",
			"address", server.Addr,
			"modules", pipeline.Registry().Len())
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
