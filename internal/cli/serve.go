package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"studybuddy/internal/api"
	"studybuddy/internal/auth"
	"studybuddy/internal/config"
	"studybuddy/internal/llm"
	"studybuddy/internal/objectstore"
	"studybuddy/internal/search"
	"studybuddy/internal/storage"
	"studybuddy/internal/timer"
)

// NewServeCommand startet den HTTP-Server
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP-API und Realtime-Hub starten",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Server-Port (überschreibt die Konfiguration)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.SetFlags(log.Ltime | log.Lmsgprefix)

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🎓 STUDYBUDDY - Start")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Println("📋 Prüfe Konfiguration...")
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Printf("   ✓ Konfiguration gültig")

	// Storage initialisieren
	log.Println("💾 Initialisiere Datenbank...")
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("datenbank initialisieren: %w", err)
	}
	defer store.Close()
	log.Printf("   ✓ Datenbank: %s", cfg.DatabasePath)

	bucket, err := objectstore.NewBucket(cfg.StoragePath, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("materialablage initialisieren: %w", err)
	}
	log.Printf("   ✓ Materialien: %s", cfg.StoragePath)

	// Suche mit Cache
	searchService := search.NewService(search.NewClient(search.DefaultBaseURL, cfg.SerpAPIKey), nil)
	go searchService.Cache().RunSweeper(ctx)

	// LLM-Provider initialisieren
	log.Println("🤖 Initialisiere KI-Tutor...")
	provider := llm.NewOllamaProvider(cfg.OllamaURL, cfg.DefaultModel)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if provider.IsAvailable(checkCtx) {
		log.Printf("   ✓ Ollama erreichbar: %s", cfg.OllamaURL)
		log.Printf("   ✓ Modell: %s", provider.ResolveModel(checkCtx))
	} else {
		log.Printf("   ⚠️  Ollama NICHT erreichbar unter %s", cfg.OllamaURL)
		log.Println("      Starte Ollama mit: ollama serve")
	}
	cancel()

	verifier := auth.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret)
	if cfg.SupabaseJWTSecret != "" {
		log.Println("   ✓ Tokens werden lokal geprüft (HS256)")
	} else {
		log.Printf("   ✓ Tokens werden bei %s geprüft", cfg.SupabaseURL)
	}

	handler := api.NewHandler(api.Deps{
		Store:     store,
		Bucket:    bucket,
		Search:    searchService,
		LLM:       provider,
		Config:    cfg,
		Verifier:  verifier,
		NewTicker: timer.NewRealTicker,
	})
	defer handler.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown
	go func() {
		<-ctx.Done()
		log.Println("")
		log.Println("⏹️  Server wird heruntergefahren...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Println("")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✅ Server läuft auf: http://localhost:%s", cfg.ServerPort)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("💡 Drücke Strg+C zum Beenden")
	log.Println("")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server-fehler: %w", err)
	}
	return nil
}
