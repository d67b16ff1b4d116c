// NeurooAiBot: a conversational assistant with two-tier memory.
// Short-term dialogue lives in Redis, permanent facts in Postgres
// with pgvector, and a rule + model pipeline decides what to keep.
package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"

	"github.com/fIIame/NeurooAiBot/chat"
	"github.com/fIIame/NeurooAiBot/config"
	"github.com/fIIame/NeurooAiBot/judge"
	"github.com/fIIame/NeurooAiBot/memory"
	"github.com/fIIame/NeurooAiBot/memory/embedder/openai"
	"github.com/fIIame/NeurooAiBot/memory/shortterm/local"
	"github.com/fIIame/NeurooAiBot/memory/shortterm/redis"
	"github.com/fIIame/NeurooAiBot/memory/store/chromem"
	"github.com/fIIame/NeurooAiBot/memory/store/pgvector"
	"github.com/fIIame/NeurooAiBot/rules"
	"github.com/fIIame/NeurooAiBot/server"
	"github.com/fIIame/NeurooAiBot/users"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Memory filter rules.
	filterRules, err := rules.Load(cfg.RulesPath)
	if err != nil {
		log.Fatalf("❌ Failed to load rules: %v", err)
	}
	log.Printf("✅ Filter rules loaded from %s", cfg.RulesPath)

	// Long-term store and user registry. The production backend is
	// Postgres with pgvector; VECTOR_STORE=local swaps in an
	// in-process store for database-free development runs.
	var longTerm memory.LongTermStore
	var userStore users.Store
	if cfg.VectorStore == "local" {
		longTerm, err = chromem.New()
		if err != nil {
			log.Fatalf("❌ Failed to init local store: %v", err)
		}
		userStore = users.NewMemoryStore()
		log.Println("✅ Long-term store ready (local, in-process)")
	} else {
		pgCfg := pgvector.DefaultConfig()
		pgCfg.DSN = cfg.DatabaseURL
		pgCfg.Dimensions = cfg.EmbeddingDim
		longTerm, err = pgvector.New(ctx, pgCfg)
		if err != nil {
			log.Fatalf("❌ Failed to open long-term store: %v", err)
		}
		log.Println("✅ Long-term store ready (pgvector)")

		// Users share the Postgres instance with the vector store.
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to open database: %v", err)
		}
		defer db.Close()
		userStore, err = users.NewPostgresStore(ctx, db)
		if err != nil {
			log.Fatalf("❌ Failed to init user store: %v", err)
		}
	}
	defer longTerm.Close()

	cachedUsers, err := users.NewCachedStore(userStore, time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to init user cache: %v", err)
	}
	log.Println("✅ User store ready")

	// Short-term store: Redis dialogue buffer, or an in-process one in
	// local mode so a database-free run needs no services at all.
	var shortTerm memory.ShortTermStore
	if cfg.VectorStore == "local" {
		shortTerm = local.New(cfg.HistoryLimit)
		log.Println("✅ Short-term store ready (local, in-process)")
	} else {
		rdCfg := redis.DefaultConfig()
		rdCfg.Addr = cfg.RedisAddr
		rdCfg.Password = cfg.RedisPassword
		rdCfg.DB = cfg.RedisDB
		rdCfg.Limit = cfg.HistoryLimit
		rs, err := redis.New(ctx, rdCfg)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer rs.Close()
		shortTerm = rs
		log.Println("✅ Short-term store ready (redis)")
	}

	// Embeddings.
	embedder, err := openai.New(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDim,
	})
	if err != nil {
		log.Fatalf("❌ Failed to init embedder: %v", err)
	}

	// Model clients.
	anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

	classifier := memory.NewClassifier(filterRules, judge.New(&anthropicClient, cfg.JudgeModel))
	admission := memory.NewAdmission(classifier, longTerm, cfg.LongTermCap)
	assembler := memory.NewAssembler(shortTerm, longTerm, embedder, classifier, admission, &memory.Config{
		QueryLimit:      cfg.QueryLimit,
		RetrieveTimeout: cfg.RetrieveTimeout,
		AdmitTimeout:    cfg.AdmitTimeout,
	})

	chatService := chat.New(&anthropicClient, chat.Config{Model: cfg.ChatModel})

	srv, err := server.New(server.Config{
		Chat:      chatService,
		Assembler: assembler,
		Users:     cachedUsers,
	})
	if err != nil {
		log.Fatalf("❌ Failed to init server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(cfg.ListenAddr)
	}()
	log.Printf("✅ NeurooAiBot running, websocket on ws://localhost%s/ws", cfg.ListenAddr)

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
		log.Println("Draining background memory writes...")
		assembler.Drain(10 * time.Second)
	case err := <-errCh:
		log.Fatalf("❌ Server failed: %v", err)
	}
}
