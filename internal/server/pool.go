package server

import (
	"errors"
	"fmt"
	"sync"

	"go.zipstore/internal/config"
	"go.zipstore/internal/engine"
)

var ErrInUse = errors.New("database is in use")

// The file lock allows a single handle per database, so sessions share one
type pool struct {
	cfg *config.Config

	mu   sync.Mutex
	open map[string]*pooled
}

type pooled struct {
	db   *engine.Database
	refs int
}

func newPool(cfg *config.Config) *pool {
	return &pool{cfg: cfg, open: make(map[string]*pooled)}
}

func (p *pool) acquire(name string) (*engine.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.open[name]; ok {
		e.refs++
		return e.db, nil
	}

	db, err := engine.Open(name, p.cfg)
	if err != nil {
		return nil, err
	}
	p.open[name] = &pooled{db: db, refs: 1}
	return db, nil
}

func (p *pool) release(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.open[name]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(p.open, name)
	return e.db.Close()
}

// drop removes a database nobody has open
func (p *pool) drop(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.open[name]; ok {
		return fmt.Errorf("%w: %s", ErrInUse, name)
	}
	return engine.Drop(name, p.cfg)
}

func (p *pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, e := range p.open {
		_ = e.db.Close()
		delete(p.open, name)
	}
}
