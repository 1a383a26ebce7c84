package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/mockparty"
)

func main() {
	ctx := context.Background()

	port := getenv("PORT", "3010")
	redisURL := getenv("REDIS_URL", "redis://localhost:6379")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("mock-party: invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	store := mockparty.NewStore()
	mockparty.Seed(store)

	hub := mockparty.NewHub()
	srv := mockparty.NewServer(store, hub, rdb, ctx)

	go hub.Run()
	go srv.RunRedisSubscriber()
	srv.StartTicker(ctx, 500*time.Millisecond)

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	log.Printf("mock-party listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("mock-party: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
