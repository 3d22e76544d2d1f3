package rest

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Container wires the service and its handler.
func Container(args *ContainerArgs, log *slog.Logger) *Handler {
	var (
		s = NewService(args)
		h = NewHandler(s, args.Hub, log)
	)
	return h
}

func ApplyRouter(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/info", func(r chi.Router) {
			r.Post("/", h.FetchInfo)
			r.Get("/", h.CachedInfo)
			r.Delete("/", h.ClearInfo)
		})

		r.Post("/download", h.Download)
		r.Post("/download/best", h.DownloadBest)
		r.Post("/stop", h.Stop)
		r.Get("/current", h.Current)

		r.Get("/version", h.Version)
		r.Post("/update", h.Update)

		r.Route("/library", func(r chi.Router) {
			r.Get("/", h.Library)
			r.Delete("/", h.DeleteLibrary)
			r.Get("/free", h.FreeSpace)
			r.Get("/{name}", h.Stream)
			r.Get("/{name}/thumbnail", h.Thumbnail)
			r.Delete("/{name}", h.DeleteFile)
			r.Post("/{name}/export", h.Export)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.History)
			r.Delete("/", h.ClearHistory)
		})
	}
}
