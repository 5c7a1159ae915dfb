package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/finsight/internal/models"
	cfgPkg "github.com/xhad/finsight/pkg/config"
	"github.com/xhad/finsight/pkg/engine"
	"github.com/xhad/finsight/pkg/ingest"
	"github.com/xhad/finsight/pkg/orchestrator"
)

type Config struct {
	ConfigPath string
	DataDir    string
	Ingest     bool
	Decompose  bool
	BaseURL    string
	ChatModel  string
	EmbedModel string
	IndexPath  string
	MetaPath   string
	Backend    string
	DBUrl      string
	TopK       int
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&config.Ingest, "ingest", false, "Rebuild the index from the data directory")
	flag.StringVar(&config.DataDir, "data", "data", "Directory of financial documents to ingest")
	flag.BoolVar(&config.Decompose, "decompose", false, "Show sub-question decomposition before answering")
	flag.StringVar(&config.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.ChatModel, "model", "", "Chat model to use")
	flag.StringVar(&config.EmbedModel, "embed-model", "", "Embedding model to use")
	flag.StringVar(&config.IndexPath, "index", "", "Path to the vector index file")
	flag.StringVar(&config.MetaPath, "meta", "", "Path to the chunk metadata file")
	flag.StringVar(&config.Backend, "backend", "", "Vector index backend (flat or pgvector)")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (pgvector backend)")
	flag.IntVar(&config.TopK, "top-k", 0, "Chunks retrieved per question")
	flag.Parse()

	return config
}

// loadConfig merges the config file with any flags the user set explicitly.
func loadConfig(config Config) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(config.ConfigPath)
	if err != nil {
		return nil, err
	}

	if config.BaseURL != "" {
		cfg.LLM.BaseURL = config.BaseURL
	}
	if config.ChatModel != "" {
		cfg.LLM.ChatModel = config.ChatModel
	}
	if config.EmbedModel != "" {
		cfg.LLM.EmbedModel = config.EmbedModel
	}
	if config.IndexPath != "" {
		cfg.Index.Path = config.IndexPath
	}
	if config.MetaPath != "" {
		cfg.Index.MetaPath = config.MetaPath
	}
	if config.Backend != "" {
		cfg.Index.Backend = config.Backend
	}
	if config.DBUrl != "" {
		cfg.Index.DatabaseURL = config.DBUrl
	}
	if config.TopK > 0 {
		cfg.Retrieval.TopK = config.TopK
	}

	return cfg, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	cfg, err := loadConfig(config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	if config.Ingest {
		if err := runIngest(ctx, cfg, config.DataDir); err != nil {
			return err
		}
	}

	if !engine.CorpusExists(cfg) {
		return fmt.Errorf("no index found at %s; run with -ingest -data <dir> first", cfg.Index.Path)
	}

	var spinner *progressbar.ProgressBar
	stopSpinner := func() {
		if spinner != nil {
			spinner.Finish()
			fmt.Print("\r")
			spinner = nil
		}
	}
	onStage := func(stage orchestrator.Stage, detail string) {
		stopSpinner()
		switch stage {
		case orchestrator.StageMainAttempt:
			spinner = getSpinner("🔍 Answering main question...")
		case orchestrator.StageGapAnalysis:
			spinner = getSpinner("🔍 Analyzing missing information...")
		case orchestrator.StageFollowUp:
			spinner = getSpinner(fmt.Sprintf("📊 Follow-up: %s", detail))
		case orchestrator.StageSynthesis:
			spinner = getSpinner("🎯 Synthesizing final answer...")
		}
	}

	eng, err := engine.Open(cfg, onStage)
	if err != nil {
		return err
	}
	defer eng.Close()

	color.Cyan("\nAsk about your financial documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		if config.Decompose {
			subs, err := eng.Orchestrator.Decompose(ctx, question)
			if err != nil {
				color.Red("Decomposition failed: %v\n", err)
			} else if len(subs) > 0 {
				color.Yellow("\nSub-questions:")
				for _, sub := range subs {
					color.Yellow("  - %s", sub)
				}
			}
		}

		result, err := eng.Orchestrator.Ask(ctx, question)
		stopSpinner()
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant: %s\n", result.Final)
		printSources(result)
	}

	return nil
}

func runIngest(ctx context.Context, cfg *cfgPkg.Config, dataDir string) error {
	color.Blue("\nBuilding index from %s\n", dataDir)

	var bar *progressbar.ProgressBar
	stats, err := engine.Ingest(ctx, cfg, dataDir, ingest.BuilderConfig{
		OnDocument: func(name string, chunks int) {
			color.Blue("📄 %s: %d chunks", name, chunks)
		},
		OnBatch: func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total, "💾 Embedding chunks...")
			}
			bar.Set(done)
		},
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %v", err)
	}
	if bar != nil {
		bar.Finish()
	}

	color.Green("\n✓ Indexed %d chunks from %d documents (%d skipped, %d failed batches)\n",
		stats.Chunks, stats.Documents, stats.Skipped, stats.FailedBatches)
	return nil
}

// printSources lists the unique cited sources of the answers that fed the
// final synthesis, main answer first.
func printSources(result orchestrator.Result) {
	seen := make(map[string]bool)
	var sources []string

	collect := func(citations []string) {
		for _, s := range citations {
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}

	collect(formatCitations(result.Main))
	for _, followUp := range result.FollowUps {
		collect(formatCitations(followUp))
	}

	if len(sources) == 0 {
		return
	}

	color.Yellow("\nSources:")
	for _, s := range sources {
		color.Yellow("  %s", s)
	}
}

func formatCitations(answer models.Answer) []string {
	out := make([]string, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		out = append(out, fmt.Sprintf("[%d] %s, chunk %d", c.Ref, c.Source, c.ChunkIndex))
	}
	return out
}
