// Package api VerdandiDB REST API
//
// @title           VerdandiDB REST API
// @version         1.0.0
// @description     This is the REST API for VerdandiDB, an embeddable table store with live queries.
// @host            localhost:9200
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/storage"
)

// StartServer starts the HTTP server with all routes configured
func StartServer(db *engine.DB, store *storage.Store, config ServerConfig) error {
	if SwaggerInfo != nil {
		SwaggerInfo.Host = fmt.Sprintf("localhost:%d", config.Port)
	}

	metrics := NewMetrics()
	server := NewServer(db, store, config, metrics)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	// API key authentication middleware for protected routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

		// Health check
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		// Tables
		r.Get("/tables", metrics.InstrumentHandler("GET", "/api/v1/tables", server.handleListTables))
		r.Post("/tables", metrics.InstrumentHandler("POST", "/api/v1/tables", server.handleCreateTable))

		// Rows
		r.Get("/tables/{table}/rows", metrics.InstrumentHandler("GET", "/api/v1/tables/{table}/rows", server.handleListRows))
		r.Post("/tables/{table}/rows", metrics.InstrumentHandler("POST", "/api/v1/tables/{table}/rows", server.handleAddRow))
		r.Delete("/tables/{table}/rows/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/tables/{table}/rows/{id}", server.handleDeleteRow))

		// Queries and aggregates
		r.Post("/tables/{table}/query", metrics.InstrumentHandler("POST", "/api/v1/tables/{table}/query", server.handleQuery))
		r.Post("/tables/{table}/aggregate", metrics.InstrumentHandler("POST", "/api/v1/tables/{table}/aggregate", server.handleAggregate))

		// Diagnostics
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/swagger/" || path == "/swagger/index.html" {
			w.Header().Set("Content-Type", "text/html")
			html := `<!DOCTYPE html>
<html>
<head>
	 <title>VerdandiDB API Documentation</title>
	 <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	 <div id="swagger-ui"></div>
	 <script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	 <script>
	   window.onload = function() {
	     SwaggerUIBundle({
	       url: '/swagger/swagger.json',
	       dom_id: '#swagger-ui',
	       presets: [
	         SwaggerUIBundle.presets.apis,
	         SwaggerUIBundle.presets.standalone
	       ]
	     });
	   };
	 </script>
</body>
</html>`
			w.Write([]byte(html))
			return
		}

		if path == "/swagger/swagger.json" {
			doc, err := swag.ReadDoc("swagger")
			if err != nil {
				http.Error(w, "Failed to generate Swagger documentation", 500)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(doc))
			return
		}

		http.NotFound(w, r)
	})

	// Start background metrics updater
	go server.startMetricsUpdater()

	addr := fmt.Sprintf(":%d", config.Port)
	fmt.Printf("Starting VerdandiDB REST API server on %s\n", addr)
	fmt.Printf("Metrics available at: http://localhost:%d/metrics\n", config.Port)
	log.Fatal(http.ListenAndServe(addr, r))

	return nil
}
