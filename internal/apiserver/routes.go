package apiserver

// registerRoutes wires every API endpoint to its handler.
func (s *Server) registerRoutes() {
	// Health
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/conversation", s.handleConversation).Methods("GET")
	api.HandleFunc("/tools", s.handleTools).Methods("GET")
	api.HandleFunc("/confirmations", s.handleConfirmations).Methods("GET")
}
