package main

import (
	"fmt"
	"net/http"

	"github.com/mcdev12/sudoku/go/internal/config"
	"github.com/mcdev12/sudoku/go/internal/gateway"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	gateway.NewHandler(services.Session, services.Hub).RegisterRoutes(mux)

	mux.Handle("GET /health", services.Health)

	handler := gateway.CORS(cfg.Server.AllowedOrigins, mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}
