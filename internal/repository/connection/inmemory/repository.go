package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"

	"github.com/watchparty/server/internal/repository/connection"
)

type repo struct {
	mu     sync.RWMutex
	byId   map[string]*connection.Conn
	byWS   map[*websocket.Conn]*connection.Conn
}

func NewRepo() *repo {
	return &repo{
		byId: make(map[string]*connection.Conn),
		byWS: make(map[*websocket.Conn]*connection.Conn),
	}
}

func (r *repo) Add(c *connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byId[c.Id]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.byWS[c.WS()]; ok {
		return connection.ErrAlreadyExists
	}

	r.byId[c.Id] = c
	r.byWS[c.WS()] = c

	return nil
}

func (r *repo) GetById(connectionId string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byId[connectionId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return c, nil
}

func (r *repo) GetByWS(ws *websocket.Conn) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byWS[ws]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return c, nil
}

// Remove detaches the connection from the table and returns it so the caller
// can run membership cleanup before the wrapper is discarded.
func (r *repo) Remove(ws *websocket.Conn) (*connection.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byWS[ws]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.byWS, ws)
	delete(r.byId, c.Id)

	return c, nil
}

func (r *repo) All() []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Values(r.byId)
}
