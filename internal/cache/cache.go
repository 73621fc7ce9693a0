// Package cache implements the content-addressed extraction cache (C4):
// given a source export and a set of requested models, it either reuses a
// prior extraction or streams the export through jsonstream/vendorformat and
// writes one cleaned conversation file per matching conversation (§4.4).
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/axAilotl/companion-keeper/internal/jsonstream"
	"github.com/axAilotl/companion-keeper/internal/source"
	"github.com/axAilotl/companion-keeper/internal/vendorformat"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// ErrNoMatchingConversations is returned when extraction produced zero
// files for every requested model (§4.4, §7).
var ErrNoMatchingConversations = errors.New("cache: no conversations matched the requested models")

// DefaultVendorBModelTag is the implicit model attribution used for
// vendor-B exports, which carry no per-message model metadata.
const DefaultVendorBModelTag = "claude"

// Cache is a content-addressed store of per-source, per-model extractions
// rooted at a directory.
type Cache struct {
	root string
}

// New builds a Cache rooted at root. It only records the path; nothing is
// created on disk here.
func New(root string) *Cache {
	return &Cache{root: root}
}

// EnsureOptions configures one extraction run.
type EnsureOptions struct {
	SourcePath      string
	Models          []string
	Roles           []models.Role
	OrderingPolicy  vendorformat.OrderingPolicy
	VendorBModelTag string
}

// EnsureResult reports the outcome of Ensure for the requested models.
type EnsureResult struct {
	Fingerprint string
	CacheRoot   string
	// ExtractionRunID tags this Ensure call for log correlation; it has no
	// bearing on cache identity, which is keyed entirely by Fingerprint.
	ExtractionRunID string
	PerModel        map[string]ModelResult
}

// ModelResult is the outcome of ensuring a cache entry for one model.
type ModelResult struct {
	Dir              string
	Files            []string
	ReusedExtraction bool
}

// Ensure implements the C4 contract: compute the fingerprint, reuse any
// existing complete extraction, and otherwise stream-extract the requested
// models in a single pass over the source.
func (c *Cache) Ensure(opts EnsureOptions) (*EnsureResult, error) {
	if len(opts.Roles) == 0 {
		opts.Roles = []models.Role{models.RoleUser, models.RoleAssistant, models.RoleSystem}
	}
	if opts.VendorBModelTag == "" {
		opts.VendorBModelTag = DefaultVendorBModelTag
	}
	if opts.OrderingPolicy == "" {
		opts.OrderingPolicy = vendorformat.OrderingTime
	}

	fingerprint, err := Fingerprint(opts.SourcePath)
	if err != nil {
		return nil, err
	}

	fingerprintDir := filepath.Join(c.root, fingerprint)
	modelExportsDir := filepath.Join(fingerprintDir, "model_exports")

	result := &EnsureResult{
		Fingerprint:     fingerprint,
		CacheRoot:       c.root,
		ExtractionRunID: uuid.New().String(),
		PerModel:        make(map[string]ModelResult),
	}

	pending := make([]string, 0, len(opts.Models))
	for _, model := range opts.Models {
		modelDir := filepath.Join(modelExportsDir, vendorformat.Sanitize(model))
		files, err := existingExtraction(modelDir)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			result.PerModel[model] = ModelResult{Dir: modelDir, Files: files, ReusedExtraction: true}
			continue
		}
		pending = append(pending, model)
	}

	if len(pending) > 0 {
		extracted, err := c.extract(opts, pending, modelExportsDir)
		if err != nil {
			return nil, err
		}
		for model, files := range extracted {
			result.PerModel[model] = ModelResult{
				Dir:              filepath.Join(modelExportsDir, vendorformat.Sanitize(model)),
				Files:            files,
				ReusedExtraction: false,
			}
		}
	}

	if err := c.updateManifest(fingerprintDir, opts.SourcePath, fingerprint, modelExportsDir, result); err != nil {
		return nil, err
	}

	anyFiles := false
	for _, r := range result.PerModel {
		if len(r.Files) > 0 {
			anyFiles = true
			break
		}
	}
	if !anyFiles {
		return nil, ErrNoMatchingConversations
	}

	return result, nil
}

func existingExtraction(modelDir string) ([]string, error) {
	entries, err := os.ReadDir(modelDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read model export dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func (c *Cache) extract(opts EnsureOptions, requestedModels []string, modelExportsDir string) (map[string][]string, error) {
	requested := make(map[string]bool, len(requestedModels))
	for _, m := range requestedModels {
		requested[m] = true
	}

	stream, err := source.Open(opts.SourcePath)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	scanner := jsonstream.NewScanner(stream.Reader)
	builders := make(map[string]*vendorformat.FilenameBuilder)
	written := make(map[string][]string)

	for scanner.Next() {
		raw := scanner.Object()
		format := vendorformat.Detect(raw)

		var (
			model    string
			messages []models.CleanedMessage
			convID   string
			earliest *float64
		)

		switch format {
		case models.FormatOpenAI:
			conv, err := vendorformat.ParseVendorA(raw)
			if err != nil {
				continue
			}
			counts := conv.DiscoverModels()
			model = vendorformat.PrimaryModel(counts.MessageCounts)
			if model == "" || !requested[model] {
				continue
			}
			messages = conv.CleanMessages(opts.Roles, opts.OrderingPolicy)
			convID = conv.ConversationID()

		case models.FormatAnthropic:
			model = opts.VendorBModelTag
			if !requested[model] {
				continue
			}
			conv, err := vendorformat.ParseVendorB(raw)
			if err != nil {
				continue
			}
			messages = conv.CleanMessages(model)
			convID = conv.ConversationID()

		default:
			continue
		}

		if len(messages) == 0 {
			continue
		}
		earliest = earliestTimestamp(messages)

		builder, ok := builders[model]
		if !ok {
			builder = vendorformat.NewFilenameBuilder()
			builders[model] = builder
		}

		modelDir := filepath.Join(modelExportsDir, vendorformat.Sanitize(model))
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return nil, fmt.Errorf("cache: create model export dir: %w", err)
		}

		filename := builder.Build(model, earliest, convID, "jsonl")
		if err := writeJSONLFile(filepath.Join(modelDir, filename), messages); err != nil {
			return nil, err
		}
		written[model] = append(written[model], filename)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cache: stream source: %w", err)
	}

	return written, nil
}

func earliestTimestamp(messages []models.CleanedMessage) *float64 {
	var earliest *float64
	for _, m := range messages {
		if m.CreateTime == nil {
			continue
		}
		if earliest == nil || *m.CreateTime < *earliest {
			earliest = m.CreateTime
		}
	}
	return earliest
}

func writeJSONLFile(path string, messages []models.CleanedMessage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cache: create conversation file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("cache: write conversation message: %w", err)
		}
	}
	return nil
}

func (c *Cache) updateManifest(fingerprintDir, sourcePath, fingerprint, modelExportsDir string, result *EnsureResult) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("cache: stat source: %w", err)
	}

	manifest, err := loadManifest(fingerprintDir)
	if err != nil {
		return err
	}
	if manifest == nil {
		manifest = &models.ExtractionCacheManifest{Models: make(map[string]models.ModelExportEntry)}
	}
	if manifest.Models == nil {
		manifest.Models = make(map[string]models.ModelExportEntry)
	}

	manifest.SourceFilePath = sourcePath
	manifest.SourceFileSizeByte = info.Size()
	manifest.SourceFileMtimeMs = info.ModTime().UnixMilli()
	manifest.SourceFingerprint = fingerprint
	manifest.CacheRoot = c.root
	manifest.ModelExportsDir = modelExportsDir

	for model, r := range result.PerModel {
		manifest.Models[model] = models.ModelExportEntry{
			FileCount:          len(r.Files),
			ReusedExtraction:   r.ReusedExtraction,
			ExtractedInLastRun: !r.ReusedExtraction,
			UpdatedAt:          nowUTC(),
		}
	}

	return saveManifest(fingerprintDir, manifest)
}
