package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Optional .env for deployment settings; flags win over environment
	_ = godotenv.Load()

	addr := flag.String("addr", envDefault("LISTEN_ADDR", ":8080"), "HTTP listen address")
	clientDir := flag.String("client", envDefault("CLIENT_DIR", ""), "Path to client directory (empty: no static serving)")
	logFile := flag.String("log", envDefault("LOG_FILE", ""), "Log file path (empty: stderr)")
	flag.Parse()

	InitLogger(*logFile)
	defer SyncLogger()

	hub := NewHub()
	go hub.Run()

	mux := SetupRoutes(hub, *clientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		Log.Infow("server starting", "addr", *addr)
		if *clientDir != "" {
			Log.Infow("serving client files", "dir", *clientDir)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	Log.Infow("shutting down")
	server.Close()
}
