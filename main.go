package main

import (
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	// .env is optional; real env vars still win inside loadConfig
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	fv := registerFlags()
	flag.Parse()
	cfg := loadConfig(*fv.configPath)
	fv.applyTo(&cfg)

	if cfg.Dev {
		cfg.LogDebug = true
	}

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("wolfjudge.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	logger, err := NewAppLogger(cfg.toLogConfig())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if logger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err := sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	store, err := NewSQLStore(db, logger)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	logger.LogDB(db, "after NewSQLStore")

	hub := NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	narrator := initNarrator(cfg)

	clock := realClock{}
	registry := NewDefaultRegistry()
	pipeline := NewPipeline(registry, logger)
	orch := NewOrchestrator(registry, NewBroadcastCollaborators(hub), 30*time.Second, logger)
	sm := NewStateMachine(pipeline, orch, clock, hub, narrator, cfg.toDurations(), logger)
	sessions := NewSessionManager(store, clock, logger)
	engine := NewEngine(registry, logger)
	ctrl := NewController(sessions, engine, sm, clock, hub, logger)

	mux := http.NewServeMux()
	NewAPI(ctrl, hub, logger).Routes(mux)

	log.Printf("Server starting on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}
