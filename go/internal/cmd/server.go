package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	services.Handler.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := c.Handler(mux)

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Server.Port),
		Handler:     h2c.NewHandler(handler, &http2.Server{}),
		IdleTimeout: 120 * time.Second,
	}
}
