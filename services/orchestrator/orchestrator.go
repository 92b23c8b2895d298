// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles and runs the AleutianDesk support service.
//
// The orchestrator wires the conversation engine together from its parts:
// session store, classifier, rule registry, generative responder with
// optional knowledge retrieval, ticketing backend, metrics, idle sweep,
// and the HTTP surface.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianDesk/services/llm"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/classifier"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/engine"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/responder"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/rules"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/ticketing"
	"github.com/AleutianAI/AleutianDesk/services/orchestrator/ttl"
)

// =============================================================================
// Service Interface
// =============================================================================

// Service is the running AleutianDesk orchestrator.
//
// # Thread Safety
//
//   - Run() blocks until server error
//   - Router() is safe for concurrent reads after New() returns
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from environment variables (see cmd/deskd), config files, or
// programmatically for testing. All fields have sensible defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend specifies the generative provider.
	// Valid values: "openai", "ollama". Default: "ollama"
	LLMBackend string

	// UseLLMClassifier routes first-message classification through the
	// LLM with the keyword classifier as fallback. Default: false.
	UseLLMClassifier bool

	// KeywordsFile optionally overrides the compiled-in classifier
	// keyword table (YAML). Empty uses the defaults.
	KeywordsFile string

	// RulesFile optionally overlays the rule handler keyword config
	// (YAML). Empty uses the defaults.
	RulesFile string

	// WeaviateURL is the knowledge base vector store URL.
	// If empty, fallback replies go out without snippet enrichment.
	WeaviateURL string

	// TicketingURL is the base URL of the ticketing backend.
	// If empty, callback and ticket collection degrade to a user-safe
	// failure reply.
	TicketingURL string

	// TicketingToken is the bearer token for the ticketing backend.
	TicketingToken string

	// AdminAPIKey protects the /v1 admin routes. Empty disables the
	// check.
	AdminAPIKey string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string

	// SweepInterval is how often the idle sweep runs. Default: 15m.
	SweepInterval time.Duration

	// IdleTimeout is the inactivity window after which a session is
	// abandoned. Default: 30m.
	IdleTimeout time.Duration

	// SweepEnabled enables the background idle sweep. Default: true.
	SweepEnabled bool
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Service configuration
//   - router: Gin HTTP engine
//   - llmClient: Generative provider client
//   - weaviateClient: Knowledge base client (may be nil)
//   - store: Live session store
//   - collector: In-memory metrics tally
//   - metrics: Prometheus metrics (nil when disabled)
//   - eng: Conversation engine
//   - sweeper: Idle session sweeper (nil when disabled)
//   - tracerCleanup: Function to shut down the tracer on exit
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	llmClient      llm.LLMClient
	weaviateClient *weaviate.Client
	store          *conversation.Store
	collector      *observability.Collector
	metrics        *observability.ConversationMetrics
	eng            *engine.Engine
	sweeper        *ttl.Sweeper
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes every component:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the LLM client for the configured backend
//  5. Creates the Weaviate client if a URL is provided
//  6. Builds classifier, rule registry, responder, ticketing backend
//  7. Assembles the engine, starts the idle sweep, registers routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the chosen LLM provider
//   - Network is available for configured external services
func New(cfg Config) (Service, error) {
	s := &service{
		config:    applyConfigDefaults(cfg),
		store:     conversation.NewStore(),
		collector: observability.NewCollector(),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	// Weaviate is optional; without it fallback replies are unenriched.
	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, continuing without retrieval",
			"error", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initEngine(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	if s.config.SweepEnabled {
		s.sweeper = ttl.NewSweeper(s.store, s.collector, s.metrics, nil, ttl.Config{
			Interval:    s.config.SweepInterval,
			IdleTimeout: s.config.IdleTimeout,
		})
		if err := s.sweeper.Start(context.Background()); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to start idle sweeper: %w", err)
		}
	}

	s.initRouter()
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting AleutianDesk orchestrator", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 15 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	cfg.SweepEnabled = true
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("deskd")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate initializes the knowledge base client.
//
// Returns nil without a client when no URL is configured; retrieval is an
// optional dependency.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, fallback replies will be unenriched")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

// initLLMClient creates the generative provider client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOllamaClient()
	}

	return err
}

// initEngine assembles the conversation pipeline.
func (s *service) initEngine() error {
	cls, err := s.buildClassifier()
	if err != nil {
		return err
	}

	rulesCfg := rules.DefaultConfig()
	if s.config.RulesFile != "" {
		rulesCfg, err = rules.LoadConfig(s.config.RulesFile)
		if err != nil {
			return err
		}
	}
	registry := rules.NewRegistry()
	rules.RegisterDefaults(registry, rulesCfg)

	var retriever retrieval.Retriever
	if s.weaviateClient != nil {
		retriever, err = retrieval.NewWeaviateRetriever(s.weaviateClient)
		if err != nil {
			return err
		}
	}

	resp, err := responder.New(s.llmClient, retriever, responder.Config{})
	if err != nil {
		return err
	}

	var backend ticketing.Backend
	if s.config.TicketingURL != "" {
		backend, err = ticketing.NewHTTPBackend(s.config.TicketingURL, s.config.TicketingToken)
		if err != nil {
			return err
		}
	}

	s.eng, err = engine.New(s.store, cls, registry, resp, backend, s.collector, s.metrics)
	return err
}

// buildClassifier constructs the configured classifier stack.
func (s *service) buildClassifier() (classifier.Classifier, error) {
	keyword := classifier.NewKeywordClassifier()
	if s.config.KeywordsFile != "" {
		table, err := classifier.LoadKeywordsFile(s.config.KeywordsFile)
		if err != nil {
			return nil, err
		}
		keyword = classifier.NewKeywordClassifierFromTable(table)
	}

	if s.config.UseLLMClassifier {
		slog.Info("Using LLM classifier with keyword fallback")
		return classifier.NewLLMClassifier(s.llmClient, keyword, 0)
	}
	return keyword, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("deskd"))

	routes.SetupRoutes(s.router, s.eng, s.store, s.collector, s.config.AdminAPIKey)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			slog.Warn("Idle sweeper stop error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// Compile-time interface check
var _ Service = (*service)(nil)
