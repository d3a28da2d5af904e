package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pharmextract/backend/internal/cache"
	"github.com/pharmextract/backend/internal/extraction"
	"github.com/pharmextract/backend/internal/service"
)

func main() {
	// Get port from environment or use default
	// NOTE: 7870 matches the frontend's default backend URL
	port := os.Getenv("PORT")
	if port == "" {
		port = "7870"
	}

	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatalf("GEMINI_API_KEY is required")
	}

	maxInputLength := envInt("MAX_INPUT_LENGTH", 0)

	// Determine if we're running locally
	useMemoryStore := os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local"

	var storeImpl cache.Store
	if useMemoryStore {
		log.Println("Using in-memory cache store for local development")
		storeImpl = cache.NewMemoryStore(envInt("CACHE_MAX_ENTRIES", 0))
	} else {
		// Production mode - share the cache across workers through Firestore
		projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
		if projectID == "" {
			log.Fatalf("GOOGLE_CLOUD_PROJECT is required when not using the memory store")
		}

		firestoreClient, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		storeImpl = cache.NewFirestoreStore(firestoreClient)
	}

	invoker := extraction.NewInvoker(extraction.NewGeminiClient(apiKey))
	svc := service.NewStructureService(storeImpl, invoker, maxInputLength)
	if modelID := os.Getenv("MODEL_ID"); modelID != "" {
		if !extraction.IsSupportedModel(modelID) {
			log.Fatalf("Unsupported MODEL_ID: %s", modelID)
		}
		svc = svc.WithDefaultModel(modelID)
	}

	mux := http.NewServeMux()
	service.NewHandler(svc).Register(mux)

	// Set up CORS
	// NOTE: Frontend runs on port 7860 locally (Gradio-era default)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:7860",
			"http://127.0.0.1:7860",
			"http://localhost:3000",
			"https://pharmextract.dev",
			"https://www.pharmextract.dev",
			"https://*.hf.space",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"User-Agent",
			"X-Model-ID",
			"X-Use-Cache",
			"X-Sample-ID",
		},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	// Create HTTP/2 server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	log.Printf("Starting server on port %s (worker %d)", port, os.Getpid())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return n
}
