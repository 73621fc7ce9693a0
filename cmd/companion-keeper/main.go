package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/axAilotl/companion-keeper/internal/cache"
	"github.com/axAilotl/companion-keeper/internal/config"
	"github.com/axAilotl/companion-keeper/internal/engine"
	"github.com/axAilotl/companion-keeper/internal/logging"
	"github.com/axAilotl/companion-keeper/internal/sampler"
	"github.com/axAilotl/companion-keeper/internal/vendorformat"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

func main() {
	app := &cli.App{
		Name:  "companion-keeper",
		Usage: "mine AI companion chat exports into a Character Card V3 with a synthesized lorebook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a companion-keeper.toml file"},
			&cli.StringFlag{Name: "provider", Usage: "llm provider kind: openai, ollama, openrouter, anthropic"},
			&cli.StringFlag{Name: "base-url", Usage: "override the provider base URL"},
			&cli.StringFlag{Name: "api-key", Usage: "llm API key (falls back to $OPENAI_API_KEY/$ANTHROPIC_API_KEY)"},
			&cli.StringFlag{Name: "model", Usage: "llm model identifier"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable verbose console logging"},
		},
		Commands: []*cli.Command{
			extractCommand(),
			sampleCommand(),
			generateCommand(),
			appendMemoriesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := c.String("base-url"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := c.String("api-key"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := c.String("model"); v != "" {
		cfg.LLM.Model = v
	}
	return cfg, nil
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "stream an export through the format detector and populate the extraction cache",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Required: true, Usage: "path to a vendor export file or ZIP"},
			&cli.StringFlag{Name: "models", Required: true, Usage: "comma-separated list of models to extract; every model must be named ('all' matches no model)"},
			&cli.StringFlag{Name: "cache-dir", Value: "./extractionCache", Usage: "extraction cache root"},
			&cli.StringFlag{Name: "ordering", Value: "time", Usage: "vendor-A branch ordering policy: time or current-path"},
		},
		Action: func(c *cli.Context) error {
			logger := logging.NewConsole(c.Bool("verbose"))

			wantModels := splitCSV(c.String("models"))
			ordering := vendorformat.OrderingTime
			if c.String("ordering") == string(vendorformat.OrderingCurrentPath) {
				ordering = vendorformat.OrderingCurrentPath
			}

			store := cache.New(c.String("cache-dir"))
			result, err := store.Ensure(cache.EnsureOptions{
				SourcePath:     c.String("input"),
				Models:         wantModels,
				OrderingPolicy: ordering,
			})
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			logger.Info().Str("fingerprint", result.Fingerprint).Msg("extraction complete")
			for model, entry := range result.PerModel {
				logger.Info().Str("model", model).Int("files", len(entry.Files)).Bool("reused", entry.ReusedExtraction).Msg("model export ready")
			}
			return printJSON(result)
		},
	}
}

func sampleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "score and select a deterministic subset of an already-cached model export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model-dir", Required: true, Usage: "a cached model export directory"},
			&cli.StringFlag{Name: "policy", Value: "weighted-random", Usage: "top, random-uniform, or weighted-random"},
			&cli.IntFlag{Name: "sample-size", Value: 24},
			&cli.Int64Flag{Name: "seed", Value: -1, Usage: "explicit seed; -1 derives one from the run parameters"},
		},
		Action: func(c *cli.Context) error {
			logger := logging.NewConsole(c.Bool("verbose"))
			modelDir := c.String("model-dir")

			files, err := listConversationFiles(modelDir)
			if err != nil {
				return err
			}

			scores := make([]models.ConversationScore, 0, len(files))
			for _, f := range files {
				score, err := sampler.ScoreFile(f)
				if err != nil {
					return fmt.Errorf("scoring %s: %w", f, err)
				}
				scores = append(scores, score)
			}

			policy := models.SamplingPolicy(c.String("policy"))
			seed := c.Int64("seed")
			if seed < 0 {
				seed = sampler.DeriveSeed(sampler.SeedComponents{
					ResolvedModelDir: modelDir,
					SampleSize:       c.Int("sample-size"),
					SamplingMode:     policy,
				})
			}

			selected := sampler.Select(scores, models.SamplingRequest{
				Policy:     policy,
				Seed:       seed,
				SampleSize: c.Int("sample-size"),
			})

			logger.Info().Int64("effectiveSeed", seed).Int("selected", len(selected)).Msg("sampling complete")
			for _, s := range selected {
				fmt.Println(s.FilePath)
			}
			return nil
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "run the full persona/memory generation pipeline and write a Character Card V3",
		Flags: commonGenerationFlags(),
		Action: func(c *cli.Context) error {
			return runGeneration(c, false)
		},
	}
}

func appendMemoriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "append-memories",
		Usage: "extract and merge new memories into an existing run's card and lorebook",
		Flags: commonGenerationFlags(),
		Action: func(c *cli.Context) error {
			return runGeneration(c, true)
		},
	}
}

func commonGenerationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "model-dir", Required: true, Usage: "a cached model export directory"},
		&cli.StringFlag{Name: "run-dir", Required: true, Usage: "output directory for this generation run"},
		&cli.StringFlag{Name: "companion-name", Usage: "the companion's display name"},
		&cli.IntFlag{Name: "sample-size", Value: 24},
		&cli.Int64Flag{Name: "seed", Value: -1},
		&cli.IntFlag{Name: "max-parallel-calls", Value: 4},
		&cli.BoolFlag{Name: "force-rerun", Usage: "discard any existing checkpoint and scan manifest"},
	}
}

func runGeneration(c *cli.Context, appendMemories bool) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	companionName := c.String("companion-name")
	if companionName == "" {
		companionName = cfg.General.CompanionName
	}
	if companionName == "" {
		return fmt.Errorf("--companion-name is required (or set general.companion_name)")
	}

	runDir := c.String("run-dir")
	runID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), uuid.New().String()[:8])
	runLogger, err := logging.StartRunLogging(runDir, runID)
	if err != nil {
		return fmt.Errorf("starting run log: %w", err)
	}
	defer runLogger.Close()

	console := logging.NewConsole(c.Bool("verbose"))

	modelDir := c.String("model-dir")
	files, err := listConversationFiles(modelDir)
	if err != nil {
		return err
	}

	seed := c.Int64("seed")
	policy := models.SamplingPolicy(cfg.Sampling.Mode)
	if seed < 0 {
		seed = sampler.DeriveSeed(sampler.SeedComponents{
			ResolvedModelDir:           modelDir,
			PrimaryModel:               cfg.LLM.Model,
			CompanionName:              companionName,
			SampleSize:                 c.Int("sample-size"),
			SamplingMode:               policy,
			MaxMessagesPerConversation: cfg.Sampling.MaxMessagesPerConversation,
			MaxCharsPerConversation:    cfg.Sampling.MaxCharsPerConversation,
			MaxTotalChars:              cfg.Sampling.MaxTotalChars,
		})
	}

	existingCard, existingMemories, err := loadExistingRunArtifacts(runDir, appendMemories)
	if err != nil {
		return err
	}

	req := models.GenerationRequest{
		ModelDir:      modelDir,
		RunDir:        runDir,
		CompanionName: companionName,
		Mode:          models.ModeFull,
		Sampling: models.SamplingRequest{
			Policy:                     policy,
			Seed:                       seed,
			SampleSize:                 c.Int("sample-size"),
			MaxMessagesPerConversation: cfg.Sampling.MaxMessagesPerConversation,
			MaxCharsPerConversation:    cfg.Sampling.MaxCharsPerConversation,
			MaxTotalChars:              cfg.Sampling.MaxTotalChars,
		},
		LLM: models.LLMConfig{
			Provider:       models.LLMProviderKind(cfg.LLM.Provider),
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			APIKey:         cfg.LLM.APIKey,
			Temperature:    cfg.LLM.Temperature,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			ContextWindow:  cfg.LLM.ContextWindow,
		},
		PromptOverrides:  map[string]string{},
		MaxParallelCalls: c.Int("max-parallel-calls"),
		MaxMemories:      cfg.Memory.MaxMemories,
		ForceRerun:       c.Bool("force-rerun"),
	}
	if appendMemories {
		req.Mode = models.ModeAppendMemories
	}

	out, err := engine.Run(context.Background(), engine.Input{
		Request:          req,
		AvailableFiles:   files,
		AppendMemories:   appendMemories,
		ExistingCard:     existingCard,
		ExistingMemories: existingMemories,
		OnProgress: func(ev models.ProgressEvent) {
			console.Info().
				Str("phase", string(ev.Phase)).
				Int("completed", ev.CompletedCalls).
				Int("total", ev.TotalCalls).
				Msg(ev.Message)
		},
	})
	if err != nil {
		return fmt.Errorf("generation run: %w", err)
	}

	console.Info().Str("status", out.Status).Int("memories", len(out.Lorebook)).Msg("generation finished")
	return nil
}

func loadExistingRunArtifacts(runDir string, required bool) (models.CharacterCardDraft, []models.LorebookEntry, error) {
	var draft models.CharacterCardDraft
	payloadPath := filepath.Join(runDir, "persona_payload.json")
	data, err := os.ReadFile(payloadPath)
	if err != nil {
		if required {
			return draft, nil, fmt.Errorf("append-memories requires an existing run: %w", err)
		}
		return draft, nil, nil
	}
	if err := json.Unmarshal(data, &draft); err != nil {
		return draft, nil, fmt.Errorf("parsing %s: %w", payloadPath, err)
	}

	var memories []models.LorebookEntry
	memoriesPath := filepath.Join(runDir, "memories_payload.json")
	if data, err := os.ReadFile(memoriesPath); err == nil {
		if err := json.Unmarshal(data, &memories); err != nil {
			return draft, nil, fmt.Errorf("parsing %s: %w", memoriesPath, err)
		}
	}
	return draft, memories, nil
}

func listConversationFiles(modelDir string) ([]string, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("reading model directory %s: %w", modelDir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(modelDir, e.Name()))
	}
	return files, nil
}

func splitCSV(s string) []string {
	if s == "" || s == "all" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
