package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school-messenger/internal/api"
	"school-messenger/internal/chat"
	"school-messenger/internal/config"
	"school-messenger/internal/db"
	"school-messenger/internal/directory"
	"school-messenger/internal/messaging"
	"school-messenger/internal/middleware"
	"school-messenger/internal/registry"
	"school-messenger/internal/store"
	"school-messenger/internal/tasks"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func serveWS(router *messaging.Router, tracker *messaging.Tracker, reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Upgrade error: %v", err)
			return
		}

		session := chat.NewSession(conn, p.Ref, router, tracker, reg)
		session.Start()
	}
}

func main() {

	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
		return
	}
	defer pool.Close()

	dir := directory.NewPostgresDirectory(pool)
	messages := store.NewPostgresMessageStore(pool)
	reg := registry.New()

	router := messaging.NewRouter(messages, dir, reg)
	aggregator := messaging.NewAggregator(messages, dir)
	tracker := messaging.NewTracker(messages)

	sweeper := tasks.NewSessionSweeper(reg, cfg.SweepEvery)
	sweeper.Start()

	authenticated := middleware.Authenticate(dir, []byte(cfg.AuthKey))

	mux := http.NewServeMux()
	mux.Handle("GET /ws", authenticated(serveWS(router, tracker, reg)))
	mux.Handle("POST /api/messages", authenticated(api.SendHandler(router, dir)))
	mux.Handle("GET /api/messages/unread", authenticated(api.UnreadHandler(tracker)))
	mux.Handle("GET /api/conversations", authenticated(api.ConversationsHandler(aggregator)))
	mux.Handle("GET /api/conversations/{role}/{id}", authenticated(api.ConversationHandler(tracker, dir)))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("🚀 Messaging server starting on :%s...\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				log.Fatalf("ListenAndServe: %v", err)
			}
		}
	}()

	<-stop

	fmt.Println("\nShutdown signal received. Cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	fmt.Println("Graceful shutdown complete. Goodnight!")
}
