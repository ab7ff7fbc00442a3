// Package main provides the diagnostics HTTP server: it loads a case once
// and serves its horizontal reductions and transport sections as JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rmshkv/mom6-tools/internal/config"
	httpHandler "github.com/rmshkv/mom6-tools/internal/http"
	"github.com/rmshkv/mom6-tools/internal/usecase"
)

const version = "0.1.0"

func main() {
	debug := flag.Bool("debug", false, "Print statements for debugging purposes")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("mom6-tools server version %s\n", version)
		return
	}
	if flag.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}

	port := getEnv("PORT", "8080")

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting diagnostics server...")
	log.Printf("Case: %s", cfg.Case.Name)
	log.Printf("Port: %s", port)

	diag, err := usecase.NewDiagnostics(cfg, *debug)
	if err != nil {
		log.Fatalf("Failed to initialize diagnostics: %v", err)
	}

	router := httpHandler.SetupRouter(diag)

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Health check: http://localhost:%s/health", port)
	log.Printf("API endpoints:")
	log.Printf("  - GET /v1/stats?variable=<name>")
	log.Printf("  - GET /v1/basins")
	log.Printf("  - GET /v1/sections")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func printUsage() {
	fmt.Printf("mom6-tools diagnostics server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  server [flags] <diag_config.yml>")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -debug      Print statements for debugging purposes")
	fmt.Println("  -version    Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
}
