// Package server implements the Notification Server counterpart (C8,
// SPEC_FULL.md §4.5): the long-poll endpoint a Notifier (C5) talks to. It is
// not part of the client library's critical path — it exists so the
// notifyhubd binary can stand in for a real Config Service during local
// integration testing.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a Server.
type Config struct {
	Listen                 string
	HoldTimeout            time.Duration
	MaxConcurrentLongPolls int
}

// Server wraps http.Server with the notification long-poll route and a
// semaphore bounding concurrently parked requests.
type Server struct {
	httpServer  *http.Server
	registry    *registry
	logger      *zerolog.Logger
	holdTimeout time.Duration
	sem         chan struct{}
}

// New builds a Server. Call Publish to advance a namespace's notification
// id and wake any parked long-polls.
func New(cfg Config, logger *zerolog.Logger) *Server {
	holdTimeout := cfg.HoldTimeout
	if holdTimeout <= 0 {
		holdTimeout = 60 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrentLongPolls
	if maxConcurrent <= 0 {
		maxConcurrent = 10000
	}

	s := &Server{
		registry:    newRegistry(),
		logger:      logger,
		holdTimeout: holdTimeout,
		sem:         make(chan struct{}, maxConcurrent),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /notifications/v2", s.handleLongPoll)
	mux.HandleFunc("POST /admin/publish", s.handleAdminPublish)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: holdTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Publish advances namespace's server-side notification id and completes
// any long-polls parked on it.
func (s *Server) Publish(namespace string, id int64, messages map[string]int64) {
	s.registry.Publish(namespace, id, messages)
}

// ListenAndServe starts the server. It blocks until Shutdown is called or
// an unrecoverable error occurs.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type clientNotification struct {
	NamespaceName  string `json:"namespaceName"`
	NotificationID int64  `json:"notificationId"`
}

// publishRequest is the body an admin posts to /admin/publish to simulate
// a release: bump namespace's notification id and wake any parked polls.
type publishRequest struct {
	NamespaceName  string           `json:"namespaceName"`
	NotificationID int64            `json:"notificationId"`
	Messages       map[string]int64 `json:"messages"`
}

func (s *Server) handleAdminPublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid publish request body", http.StatusBadRequest)
		return
	}
	if req.NamespaceName == "" {
		http.Error(w, "namespaceName is required", http.StatusBadRequest)
		return
	}

	s.Publish(req.NamespaceName, req.NotificationID, req.Messages)
	s.logger.Info().
		Str("namespace", req.NamespaceName).
		Int64("notificationId", req.NotificationID).
		Msg("server: admin publish")

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLongPoll(w http.ResponseWriter, r *http.Request) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		http.Error(w, "too many concurrent long polls", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	var clientVector []clientNotification
	if err := json.Unmarshal([]byte(q.Get("notifications")), &clientVector); err != nil {
		http.Error(w, "invalid notifications parameter", http.StatusBadRequest)
		return
	}

	clientIDs := make(map[string]int64, len(clientVector))
	normalizedToOriginal := make(map[string]string, len(clientVector))
	for _, n := range clientVector {
		normalized := normalizeNamespace(n.NamespaceName)
		clientIDs[normalized] = n.NotificationID
		normalizedToOriginal[normalized] = n.NamespaceName
	}

	if diff := s.registry.diff(clientIDs); len(diff) > 0 {
		writeNotifications(w, diff, normalizedToOriginal)
		return
	}

	handle := &parkedHandle{
		result:    newDeferredResult(normalizedToOriginal),
		clientIDs: clientIDs,
	}
	s.registry.park(handle)
	defer s.registry.unpark(handle)
	s.logger.Debug().Int("watched", len(clientIDs)).Msg("server: parked long-poll request")

	ctx, cancel := context.WithTimeout(r.Context(), s.holdTimeout)
	defer cancel()

	select {
	case <-handle.result.done:
		notifications, timedOut := handle.result.snapshot()
		if timedOut {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeNotifications(w, notifications, normalizedToOriginal)
	case <-ctx.Done():
		handle.result.timeoutNow()
		w.WriteHeader(http.StatusNotModified)
	}
}

func writeNotifications(w http.ResponseWriter, notifications []notificationResult, normalizedToOriginal map[string]string) {
	for i, n := range notifications {
		if original, ok := normalizedToOriginal[n.NamespaceName]; ok {
			notifications[i].NamespaceName = original
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(notifications)
}
