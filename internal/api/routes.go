package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers the public handlers on r.
func (s *Service) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/transactions/submit", s.HandleSubmitTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{signature}", s.HandleTransactionStatus).Methods(http.MethodGet)

	api.HandleFunc("/users/profile/{address}", s.HandleProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/available/{address}", s.HandleAvailable).Methods(http.MethodGet)
	api.HandleFunc("/users/pending-requests/{address}", s.HandlePendingRequests).Methods(http.MethodGet)
	api.HandleFunc("/users/registration/{address}", s.HandleRegistration).Methods(http.MethodGet)
	api.HandleFunc("/users/posts/{address}", s.HandleUserPosts).Methods(http.MethodGet)

	api.HandleFunc("/send-friend-request", s.HandleSendFriendRequest).Methods(http.MethodPost)
	api.HandleFunc("/accept-friend-request", s.HandleAcceptFriendRequest).Methods(http.MethodPost)
	api.HandleFunc("/reject-friend-request", s.HandleRejectFriendRequest).Methods(http.MethodPost)

	api.HandleFunc("/posts", s.HandleCreatePost).Methods(http.MethodPost)
	api.HandleFunc("/posts", s.HandleListPosts).Methods(http.MethodGet)

	api.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/version", s.HandleVersion).Methods(http.MethodGet)
	api.HandleFunc("/activity", s.HandleActivity).Methods(http.MethodGet)
	api.HandleFunc("/blockhash", s.HandleBlockhash).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
	})

	r.HandleFunc("/ws/events/{address}", s.HandleEvents).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.HandleDocs).Methods(http.MethodGet)
}

// AdminRoutes registers the operator handlers on r. They replace or copy the
// whole database and belong on a listener that only operators can reach.
func (s *Service) AdminRoutes(r *mux.Router) {
	admin := r.PathPrefix("/admin").Subrouter()

	admin.HandleFunc("/backups", s.HandleCreateBackup).Methods(http.MethodPost)
	admin.HandleFunc("/backups", s.HandleBackupsList).Methods(http.MethodGet)
	admin.HandleFunc("/backups/export", s.HandleExportSnapshot).Methods(http.MethodGet)
	admin.HandleFunc("/backups/restore", s.HandleRestoreBackup).Methods(http.MethodPost)
	admin.HandleFunc("/backups/import", s.HandleImportSnapshot).Methods(http.MethodPost)

	admin.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
	})
}
