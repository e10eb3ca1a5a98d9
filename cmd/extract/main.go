package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/common"
	"github.com/CamiloRuizJ/rexeli/internal/extract"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/llm/openai"
	"github.com/CamiloRuizJ/rexeli/internal/metrics"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
	"github.com/CamiloRuizJ/rexeli/internal/resilience"
	"github.com/CamiloRuizJ/rexeli/internal/service"
	"github.com/CamiloRuizJ/rexeli/internal/storage/localfs"
	"github.com/CamiloRuizJ/rexeli/internal/training"
)

// One-shot extraction CLI: classify (when no type is given) and extract a
// single document, printing the normalized payload as JSON.
func main() {
	var (
		filePath = flag.String("file", "", "path to the document (pdf or image)")
		docType  = flag.String("type", "", "document type; classified from the file when empty")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	log := common.NewLogger("extract", cfg.LogLevel)

	if *filePath == "" {
		log.Error("usage: extract -file <path> [-type <document_type>]")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Error("read file", "path", *filePath, "error", err)
		os.Exit(1)
	}
	mimeType := mimeForExt(filepath.Ext(*filePath))
	if mimeType == "" {
		log.Error("unsupported file extension", "path", *filePath)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := repository.Open(repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, log)
	if err != nil {
		log.Error("db.open", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Error("db.schema", "error", err)
		os.Exit(1)
	}

	store, err := localfs.New(cfg.Storage.RootDir)
	if err != nil {
		log.Error("storage.open", "error", err)
		os.Exit(1)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())
	mm := metrics.NewModelMetrics("extract")
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, exec, mm, log)

	docs := repository.NewTrainingDocumentRepository(db, log)
	jobs := repository.NewFineTuningJobRepository(db, log)
	models := repository.NewModelVersionRepository(db, log)
	triggers := repository.NewTrainingTriggerRepository(db, log)
	coordinator := training.NewCoordinator(docs, jobs, models, triggers, client, store, log)

	svc := service.New(client, coordinator, docs, models, store, cfg.Batch.Concurrency, log)

	dt, ok := constants.CanonicalizeDocumentType(*docType)
	if !ok {
		if *docType != "" {
			log.Error("unknown document type", "type", *docType)
			os.Exit(2)
		}
		if constants.MapMIMEToFormat(mimeType) != constants.IMAGE {
			log.Error("classification needs page images; pass -type for PDFs")
			os.Exit(2)
		}
		cls, err := svc.ClassifyDocument(ctx, []llm.Image{{MIMEType: mimeType, Data: data}})
		if err != nil {
			log.Error("classify", "error", err)
			os.Exit(1)
		}
		log.Info("classified", "type", string(cls.Type), "confidence", cls.Confidence)
		dt = cls.Type
	}

	doc, err := svc.ExtractDocumentData(ctx, extract.Input{
		Filename: filepath.Base(*filePath),
		MIMEType: mimeType,
		Data:     data,
	}, dt)
	if err != nil {
		log.Error("extract", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(json.RawMessage(doc.RawExtraction), "", "  ")
	if err != nil {
		log.Error("encode output", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func mimeForExt(ext string) string {
	switch constants.NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
