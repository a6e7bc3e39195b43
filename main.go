package main

import (
	"log"
	"os"
	"time"

	"daftarchat/internal/api"
	"daftarchat/internal/auth"
	"daftarchat/internal/briefing"
	"daftarchat/internal/config"
	"daftarchat/internal/dispatch"
	"daftarchat/internal/memory"
	"daftarchat/internal/orchestrator"
	"daftarchat/internal/provider"
	"daftarchat/internal/redis"
	"daftarchat/internal/services"
	"daftarchat/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("DAFTAR_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("DAFTAR_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	// Create necessary tables: users, parties, products, vouchers, memories, ...
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	userService := services.NewUserService(db)
	partyService := services.NewPartyService(db)
	catalogService := services.NewCatalogService(db)
	financeService := services.NewFinanceService(db)
	prefsService := services.NewPrefsService(db)

	selection := provider.NewSelection(db)
	router := provider.NewRouter(cfg, selection)

	memoryStore := memory.NewStore(db)
	memoryService := memory.NewService(memoryStore, router, cfg.Assistant.RecallLimit, cfg.Assistant.SummaryMinMessages)

	snapshotTTL := time.Duration(cfg.Assistant.SnapshotTTLSeconds) * time.Second
	assembler := briefing.NewAssembler(financeService, catalogService, partyService, memoryService, rdb, snapshotTTL)
	dispatcher := dispatch.NewDispatcher(partyService, catalogService, financeService, prefsService)
	sessions := orchestrator.NewManager(router, assembler, dispatcher, memoryService)

	authService := auth.NewService(db, 24*time.Hour)
	handlers := api.NewHandler(userService, authService, sessions, selection)

	engine := gin.Default()
	handlers.RegisterRoutes(engine)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := engine.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
