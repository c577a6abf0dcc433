package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/helper"
	"docrag/internal/llmservice"
	"docrag/internal/rag"
	"docrag/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	query := flag.String("query", "", "Question to answer against the index")
	k := flag.Int("k", 0, "Number of chunks to retrieve (default from config)")
	flag.Parse()

	if *filePath == "" && *query == "" {
		log.Fatal().Msg("Please provide a document file using the -file flag or a question using the -query flag")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	if cfg.Store.Type == "chromem" && !cfg.Store.InMemory {
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			log.Fatal().Err(err).Msg("Error creating store folder")
		}
	}

	st, err := store.New(&cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening store")
	}
	defer st.Close()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	llm, err := llmservice.NewClient(&cfg.GenLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing llm client")
	}

	pipeline := rag.New(cfg, st, embedder, llm)
	ctx := context.Background()

	if *filePath != "" {
		ingestFile(ctx, pipeline, *filePath)
	}

	if *query != "" {
		if *k == 0 {
			*k = pipeline.DefaultK()
		}
		answer(ctx, pipeline, *query, *k)
	}
}

func ingestFile(ctx context.Context, pipeline *rag.Pipeline, filePath string) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading file")
	}

	report := pipeline.Ingest(ctx, []rag.File{{Name: filepath.Base(filePath), Data: data}})
	helper.PrettyPrint(report)
	if report.Failed() > 0 {
		os.Exit(1)
	}
}

func answer(ctx context.Context, pipeline *rag.Pipeline, query string, k int) {
	response, err := pipeline.Answer(ctx, query, k)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range response.Sources {
		fmt.Printf("%s (page %d)\n", src.Source, src.Page)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}
