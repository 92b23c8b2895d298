// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// deskd is the AleutianDesk support chatbot server.
//
// All configuration comes from the environment:
//
//	DESKD_PORT               HTTP port (default 12310)
//	DESKD_GIN_MODE           gin mode: debug, release, test
//	DESKD_ADMIN_API_KEY      shared key for the /v1 admin routes
//	DESKD_KEYWORDS_FILE      classifier keyword table (YAML)
//	DESKD_RULES_FILE         rule handler keyword overrides (YAML)
//	DESKD_LOG_DIR            directory for the JSON file log
//	LLM_BACKEND_TYPE         "openai" or "ollama" (default ollama)
//	USE_LLM_CLASSIFIER       "true" routes classification through the LLM
//	OPENAI_API_KEY/MODEL     OpenAI credentials and model
//	OLLAMA_BASE_URL/MODEL    Ollama endpoint and model
//	WEAVIATE_SERVICE_URL     knowledge base endpoint (optional)
//	TICKETING_URL/TOKEN      ticketing backend (optional)
//	OTEL_EXPORTER_OTLP_ENDPOINT  trace collector endpoint
//	SWEEP_INTERVAL_MINUTES   idle sweep cadence (default 15)
//	IDLE_TIMEOUT_MINUTES     session idle timeout (default 30)
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianDesk/pkg/logging"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("DESKD_LOG_LEVEL")),
		Service: "deskd",
		JSON:    true,
		LogDir:  os.Getenv("DESKD_LOG_DIR"),
	})
	defer logger.Close()
	logger.SetAsDefault()

	svc, err := orchestrator.New(orchestrator.Config{
		Port:             envInt("DESKD_PORT", 0),
		GinMode:          os.Getenv("DESKD_GIN_MODE"),
		AdminAPIKey:      os.Getenv("DESKD_ADMIN_API_KEY"),
		KeywordsFile:     os.Getenv("DESKD_KEYWORDS_FILE"),
		RulesFile:        os.Getenv("DESKD_RULES_FILE"),
		LLMBackend:       os.Getenv("LLM_BACKEND_TYPE"),
		UseLLMClassifier: os.Getenv("USE_LLM_CLASSIFIER") == "true",
		WeaviateURL:      os.Getenv("WEAVIATE_SERVICE_URL"),
		TicketingURL:     os.Getenv("TICKETING_URL"),
		TicketingToken:   os.Getenv("TICKETING_TOKEN"),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SweepInterval:    time.Duration(envInt("SWEEP_INTERVAL_MINUTES", 0)) * time.Minute,
		IdleTimeout:      time.Duration(envInt("IDLE_TIMEOUT_MINUTES", 0)) * time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to initialize deskd: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("deskd server error: %v", err)
	}
}

// envInt reads an integer environment variable, falling back on absence or
// garbage.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", name, raw, err)
		return fallback
	}
	return v
}
