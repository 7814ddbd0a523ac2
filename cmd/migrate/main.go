package main

import (
	"log"

	"markbox/config"
	"markbox/internal/db"
	"markbox/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// NewDB уже выполняет AutoMigrate для всех моделей
	gormDB, err := db.NewDB(cfg.DSN, false)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	migrator := gormDB.Migrator()
	indexes := []struct {
		model any
		name  string
	}{
		{&models.Category{}, "idx_categories_owner_order"},
		{&models.Item{}, "idx_items_owner_order"},
		{&models.Item{}, "CategoryID"},
		{&models.Token{}, "ExpiresAt"},
	}
	for _, idx := range indexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			log.Fatalf("create index %s failed: %v", idx.name, err)
		}
	}

	log.Println("migration completed")
}
