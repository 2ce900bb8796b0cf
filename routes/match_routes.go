package routes

import (
	"net/http"

	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for match lifecycle operations under /api/match
func RegisterMatchRoutes(r *mux.Router, matchService *services.MatchService, auth func(http.Handler) http.Handler) {
	controller := controllers.NewMatchController(matchService)

	matchRouter := r.PathPrefix("/api/match").Subrouter()
	matchRouter.Use(auth)

	matchRouter.HandleFunc("", controller.HandleCreateMatch).Methods("POST")
	matchRouter.HandleFunc("/open", controller.HandleOpenMatch).Methods("POST")
	matchRouter.HandleFunc("/unmatch", controller.HandleUnmatch).Methods("POST")
}
