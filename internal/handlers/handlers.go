package handlers

import (
	"time"

	"media-editor/internal/codec"
	"media-editor/internal/database"
	"media-editor/internal/indexer"
	"media-editor/internal/orchestrator"
	"media-editor/internal/startup"
)

// processCounter reports running external codec processes.
type processCounter interface {
	Active() int
}

// Deps are the services the handlers work against. Indexer, Session and
// Processes may be nil.
type Deps struct {
	DB           *database.Database
	Orchestrator *orchestrator.Orchestrator
	Backend      codec.Backend
	Indexer      *indexer.Indexer
	Hub          *Hub
	Session      *Session
	Processes    processCounter
	Config       *startup.Config
}

// Handlers serves the HTTP control surface.
type Handlers struct {
	db        *database.Database
	cache     *database.ProbeCache
	orch      *orchestrator.Orchestrator
	backend   codec.Backend
	indexer   *indexer.Indexer
	hub       *Hub
	session   *Session
	processes processCounter

	mediaDir  string
	frameDir  string
	startTime time.Time
}

func New(deps Deps) *Handlers {
	h := &Handlers{
		db:        deps.DB,
		cache:     database.NewProbeCache(deps.DB),
		orch:      deps.Orchestrator,
		backend:   deps.Backend,
		indexer:   deps.Indexer,
		hub:       deps.Hub,
		session:   deps.Session,
		processes: deps.Processes,
		startTime: time.Now(),
	}
	if deps.Config != nil {
		h.mediaDir = deps.Config.MediaDir
		h.frameDir = deps.Config.FrameDir
	}
	if h.hub == nil {
		h.hub = NewHub(deps.DB)
	}
	return h
}

// Hub returns the event hub fed by Run.
func (h *Handlers) Hub() *Hub {
	return h.hub
}
