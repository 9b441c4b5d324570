package backend

import (
	"fmt"

	"github.com/vidforge/rendertrack/pkg/models"
)

// Resolver picks the right backend client for a job's metadata
type Resolver struct {
	clients map[models.BackendKind]Client
}

// NewResolver builds a resolver from the given clients
func NewResolver(clients ...Client) *Resolver {
	m := make(map[models.BackendKind]Client, len(clients))
	for _, c := range clients {
		m[c.Kind()] = c
	}
	return &Resolver{clients: m}
}

// ClientFor returns the client for the job's backend kind, failing
// closed when no client is registered for it.
func (r *Resolver) ClientFor(meta models.BackendMetadata) (Client, error) {
	c, ok := r.clients[meta.Kind]
	if !ok {
		return nil, fmt.Errorf("no client registered for backend kind %q", meta.Kind)
	}
	return c, nil
}
