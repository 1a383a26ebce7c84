// Package mockparty is an in-process party service for local development
// and tests: the REST surface, the websocket push feed and the redis
// broadcast channel between them, with all state held in memory.
package mockparty

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	store *Store
	hub   *Hub
	rdb   *redis.Client
	ctx   context.Context
}

func NewServer(store *Store, hub *Hub, rdb *redis.Client, ctx context.Context) *Server {
	return &Server{store: store, hub: hub, rdb: rdb, ctx: ctx}
}

// Router builds the chi router with the full REST + websocket surface.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/parties/{id}", func(r chi.Router) {
		r.Get("/", s.handleSnapshot)
		r.Get("/ranked", s.handleRanked)
		r.Post("/media/{mediaId}/bids", s.handleBid)
		r.Post("/media/{mediaId}/veto", s.handleVeto)
		r.Post("/media/{mediaId}/unveto", s.handleUnveto)
		r.Post("/skip-next", s.handleSkipNext)
		r.Post("/skip-previous", s.handleSkipPrevious)
		r.Post("/end", s.handleEnd)
	})

	return r
}

// RunRedisSubscriber forwards everything published on "broadcast" to the
// websocket hub. Handlers never talk to the hub directly.
func (s *Server) RunRedisSubscriber() {
	sub := s.rdb.Subscribe(s.ctx, "broadcast")
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		s.hub.broadcast <- []byte(msg.Payload)
	}
}

func (s *Server) publish(ctx context.Context, msg push.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("mock-party: publish %s: %v", msg.Type, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mock-party",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	partyID := r.URL.Query().Get("partyId")
	userID := r.URL.Query().Get("userId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mock-party: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()

	if partyID != "" {
		s.store.Join(partyID)
		s.publish(r.Context(), push.Message{
			Type:    push.TypeJoin,
			PartyID: partyID,
			UserID:  userID,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
