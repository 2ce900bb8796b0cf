package routes

import (
	"net/http"

	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterSyncRoutes sets up the sync pull endpoint under /api/sync
func RegisterSyncRoutes(r *mux.Router, syncService *services.SyncService, auth func(http.Handler) http.Handler) {
	controller := controllers.NewSyncController(syncService)

	syncRouter := r.PathPrefix("/api/sync").Subrouter()
	syncRouter.Use(auth)

	syncRouter.HandleFunc("/pull", controller.HandleSyncPull).Methods("POST")
}
