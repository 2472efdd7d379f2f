package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/recbridge/internal/observability"
	"github.com/harun/recbridge/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// idleAfter marks a client idle when it has been silent this long.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks WebSocket clients together with the rate limits
// handed to them. Authentication state and limits are only written under mu,
// so admitting a client and changing limits cannot interleave.
type ClientRegistry struct {
	mu                sync.RWMutex
	clients           map[string]*Client
	requestsPerMinute int
	maxConcurrent     int
}

// NewClientRegistry creates a registry whose clients start with the given
// limits. Non-positive limits fall back to the limiter defaults.
func NewClientRegistry(requestsPerMinute, maxConcurrent int) *ClientRegistry {
	return &ClientRegistry{
		clients:           make(map[string]*Client),
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
	}
}

// Admit registers a new connection under a fresh id. Clients admitted as
// authenticated skip the challenge.
func (r *ClientRegistry) Admit(conn *websocket.Conn, remoteAddr string, authenticated bool) *Client {
	id, err := gonanoid.New()
	if err != nil {
		id = tracing.NewTraceID()
	}

	now := time.Now()
	client := &Client{
		ID:           id,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    remoteAddr,
		State:        StateConnecting,
	}
	if authenticated {
		client.Authenticated = true
		client.State = StateAuthenticated
	}

	r.mu.Lock()
	client.RateLimiter = NewClientRateLimiterWithLimits(r.requestsPerMinute, r.maxConcurrent)
	r.clients[id] = client
	count := len(r.clients)
	r.mu.Unlock()

	observability.SetConnectedClients(count)
	return client
}

// MarkAuthenticated flags a client as allowed to receive notices.
func (r *ClientRegistry) MarkAuthenticated(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		return false
	}
	client.Authenticated = true
	client.State = StateAuthenticated
	return true
}

// Release forgets a client after its connection ended.
func (r *ClientRegistry) Release(clientID string) {
	r.mu.Lock()
	if client, ok := r.clients[clientID]; ok {
		client.State = StateDisconnected
		delete(r.clients, clientID)
	}
	count := len(r.clients)
	r.mu.Unlock()

	observability.SetConnectedClients(count)
}

// Touch records activity for a client.
func (r *ClientRegistry) Touch(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = time.Now()
	}
}

// SetLimits changes the limits for future clients and applies them to every
// connected one. It returns how many clients were updated.
func (r *ClientRegistry) SetLimits(requestsPerMinute, maxConcurrent int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requestsPerMinute = requestsPerMinute
	r.maxConcurrent = maxConcurrent
	for _, client := range r.clients {
		client.RateLimiter.UpdateLimits(requestsPerMinute, maxConcurrent)
	}
	return len(r.clients)
}

// Limits returns the limits new clients receive.
func (r *ClientRegistry) Limits() (requestsPerMinute, maxConcurrent int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requestsPerMinute, r.maxConcurrent
}

// All returns every registered client.
func (r *ClientRegistry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Recipients returns the clients that may receive server notices.
func (r *ClientRegistry) Recipients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []*Client
	for _, client := range r.clients {
		if client.Authenticated {
			clients = append(clients, client)
		}
	}
	return clients
}

// Len returns the number of registered clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot describes every client, oldest connection first.
func (r *ClientRegistry) Snapshot() []ClientInfo {
	r.mu.RLock()
	now := time.Now()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, client := range r.clients {
		infos = append(infos, ClientInfo{
			ID:            client.ID,
			Authenticated: client.Authenticated,
			ConnectedAt:   client.ConnectedAt,
			LastActivity:  client.LastActivity,
			IPAddress:     client.IPAddress,
			Idle:          now.Sub(client.LastActivity) > idleAfter,
		})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}
