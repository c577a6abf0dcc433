package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/helper"
	"docrag/internal/llmservice"
	"docrag/internal/rag"
	"docrag/internal/server"
	"docrag/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

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

	e := server.New(pipeline)
	log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
	if err := e.Start(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
