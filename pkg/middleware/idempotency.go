package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"roombook/pkg/auth"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"
)

// IdempotencyStore keeps successful POST responses for replay. Keys are
// already scoped to caller and route.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// InMemoryIdempotencyStore serves a single instance. Replicated deployments
// use the Redis store so a retry landing elsewhere still replays.
type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*CachedResponse
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]*CachedResponse),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.expired(response, time.Now()) {
		delete(s.entries, key)
		return nil, false
	}
	return response, true
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = response
}

func (s *InMemoryIdempotencyStore) expired(response *CachedResponse, now time.Time) bool {
	return now.Sub(response.CreatedAt) > s.ttl
}

func (s *InMemoryIdempotencyStore) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.mu.Lock()
			for key, response := range s.entries {
				if s.expired(response, now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a POST arrives again with the
// same key from the same caller. Only 2xx responses are stored, so a create
// rejected with a conflict may be retried under the same key.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = IdempotencyKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyKey(r, headerName)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cached, ok := store.Get(r.Context(), key); ok {
				replay(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			headers := w.Header().Clone()
			headers.Set(IdempotentReplayHeader, "true")
			store.Set(context.WithoutCancel(r.Context()), key, &CachedResponse{
				StatusCode: capture.statusCode,
				Headers:    headers,
				Body:       bytes.Clone(capture.body.Bytes()),
				CreatedAt:  time.Now(),
			})
		})
	}
}

// idempotencyKey scopes the client key to the caller and route, so two users
// sending the same key never see each other's responses.
func idempotencyKey(r *http.Request, headerName string) string {
	key := r.Header.Get(headerName)
	if key == "" || r.Method != http.MethodPost {
		return ""
	}

	caller := "anonymous"
	if id, ok := auth.FromContext(r.Context()); ok {
		caller = id.UserID
	}
	return caller + "|" + r.Method + " " + r.URL.Path + "|" + key
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
