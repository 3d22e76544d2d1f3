package rpc

import (
	"log/slog"
	"net/rpc"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/history"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
)

type ContainerArgs struct {
	Orchestrator Orchestrator
	Cache        MediaCache
	Library      *library.Lister
	History      *history.Store
	Hub          *events.Hub
}

// Dependency injection container. The service is registered as "Service"
// on a dedicated rpc.Server.
func Container(args *ContainerArgs, log *slog.Logger) (*rpc.Server, error) {
	svc := &Service{
		orchestrator: args.Orchestrator,
		cache:        args.Cache,
		library:      args.Library,
		history:      args.History,
		hub:          args.Hub,
		log:          log.With(slog.String("component", "rpc")),
	}

	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		return nil, err
	}

	return server, nil
}

func ApplyRouter(server *rpc.Server) func(chi.Router) {
	h := &handler{server: server}

	return func(r chi.Router) {
		r.Get("/ws", h.WebSocket)
		r.Post("/http", h.Post)
	}
}
