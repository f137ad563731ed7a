package server

// setupRoutes configures the side channel routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Image input page
	r.Get("/", s.imageInputPage)
	r.Get("/image-input", s.imageInputPage)

	r.Get("/health", s.health)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)

	r.Get("/api/network", s.network)
	r.Get("/api/sessions", s.listSessions)
	r.Get("/api/events", s.recentEvents)
	r.Post("/api/image-to-build", s.imageToBuild)
	r.Get("/api/qr", s.qrCode)
}
