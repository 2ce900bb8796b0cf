package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"spark_server/middleware"
	"spark_server/routes"
	"spark_server/services"
	"spark_server/socket"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	// Initialize DynamoDB client and service
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	dynamoService := &services.DynamoService{Client: dynamoClient}
	log.Println("DynamoDB client initialized.")

	// Redis backs the signed-URL cache
	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	s3Service := services.NewS3Service(rdb)

	keyService, err := services.NewKeyServiceFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize key service: %v", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	auth := middleware.NewAuthMiddleware(jwtSecret)

	// Socket.IO server for realtime new-message hints
	socketServer := socket.NewSocketServer()
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Printf("❌ Socket server error: %v", err)
		}
	}()
	defer socketServer.Close()

	// Initialize Services
	photoService := &services.PhotoService{Dynamo: dynamoService}
	matchSyncService := &services.MatchSyncService{Dynamo: dynamoService}
	chatSyncService := &services.ChatSyncService{Dynamo: dynamoService, S3: s3Service}
	messageSyncService := &services.MessageSyncService{Dynamo: dynamoService}
	syncService := services.NewSyncService(photoService, matchSyncService, chatSyncService, messageSyncService, keyService)
	chatService := &services.ChatService{Dynamo: dynamoService, Keys: keyService, Socket: socketServer}
	matchService := &services.MatchService{Dynamo: dynamoService}

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to Spark")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Register routes
	routes.RegisterSyncRoutes(r, syncService, auth)
	routes.RegisterChatRoutes(r, chatService, auth)
	routes.RegisterMatchRoutes(r, matchService, auth)

	r.PathPrefix("/socket.io/").Handler(socketServer)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:       []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusNoContent,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
