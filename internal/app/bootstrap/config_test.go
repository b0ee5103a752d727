package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "taskmesh",
		CachePath:       "./data/cache.db",
		ResyncInterval:  30 * time.Second,
		ResyncBatchSize: 100,
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := ValidateConfig(nil, validAppConfig(), zap.NewNop()); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
}

func TestValidateConfig_BadMongoURI(t *testing.T) {
	cfg := validAppConfig()
	cfg.MongoURI = "not-a-mongo-uri"
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid mongo URI")
	}
}

func TestValidateConfig_EmptyCachePath(t *testing.T) {
	cfg := validAppConfig()
	cfg.CachePath = ""
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty cache path")
	}
}

func TestValidateConfig_BadResyncKnobs(t *testing.T) {
	cfg := validAppConfig()
	cfg.ResyncInterval = 0
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for zero resync interval")
	}

	cfg = validAppConfig()
	cfg.ResyncBatchSize = 0
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for zero resync batch size")
	}
}
