package profiler

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/periscope-mesh/periscope/internal/constants"
)

// document mirrors the YAML configuration file. Pointer fields distinguish
// "absent" from zero values so each field merges independently.
type document struct {
	ProfilingRanges *string `yaml:"profiling_ranges"`
	Activities      *string `yaml:"activities"`
	Options         struct {
		RecordShapes  *bool `yaml:"record_shapes"`
		WithStack     *bool `yaml:"with_stack"`
		ProfileMemory *bool `yaml:"profile_memory"`
	} `yaml:"options"`
	Output struct {
		ExportTrace *bool   `yaml:"export_trace"`
		FilePattern *string `yaml:"file_pattern"`
	} `yaml:"output"`
	Advanced struct {
		TargetModule *string `yaml:"target_module"`
		TargetSymbol *string `yaml:"target_symbol"`
		Debug        *bool   `yaml:"debug"`
	} `yaml:"advanced"`
}

// Resolver produces the process-wide configuration snapshot. Resolution
// happens at most once; the result is cached for the process lifetime.
type Resolver struct {
	mu     sync.Mutex
	path   string
	cached *Config
}

// NewResolver creates a resolver reading the document at path (empty path
// skips the file layer).
func NewResolver(path string) *Resolver {
	return &Resolver{path: path}
}

// Resolve merges defaults, the configuration document and environment
// variables (highest precedence) into one immutable snapshot. Repeated
// calls return the cached snapshot.
func (r *Resolver) Resolve(logger zerolog.Logger) *Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached
	}

	r.cached = resolve(r.path, logger.With().Str("component", "profiler-config").Logger())
	return r.cached
}

// Invalidate drops the cached snapshot so the next Resolve re-reads all
// sources. There is no runtime reconfiguration channel; this exists for
// tests.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

func resolve(path string, logger zerolog.Logger) *Config {
	cfg := DefaultConfig()

	if doc := readDocument(path, logger); doc != nil {
		mergeDocument(cfg, doc, logger)
	}
	mergeEnv(cfg, logger)

	if len(cfg.Activities) == 0 {
		cfg.Activities = DefaultConfig().Activities
	}
	if len(cfg.Ranges) == 0 {
		logger.Warn().Msg("No valid recording windows resolved, using default window")
		cfg.Ranges = DefaultConfig().Ranges
	}

	logger.Info().
		Str("ranges", FormatRanges(cfg.Ranges)).
		Str("output", cfg.OutputPattern).
		Bool("export_trace", cfg.ExportTrace).
		Str("target", cfg.TargetModule+"."+cfg.TargetSymbol).
		Msg("Profiler configuration resolved")

	return cfg
}

// readDocument loads the YAML document. An unreadable or unparsable
// document is a recoverable degradation: logged once, resolution continues
// with environment variables and defaults only.
func readDocument(path string, logger zerolog.Logger) *document {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is fixed by deployment config.
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Config document unreadable, using env and defaults")
		}
		return nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Config document unparsable, using env and defaults")
		return nil
	}

	return &doc
}

func mergeDocument(cfg *Config, doc *document, logger zerolog.Logger) {
	if doc.ProfilingRanges != nil {
		cfg.Ranges = parseRangesLogged(*doc.ProfilingRanges, logger)
	}
	if doc.Activities != nil {
		cfg.Activities = parseActivitiesLogged(*doc.Activities, cfg.Activities, logger)
	}
	if doc.Options.RecordShapes != nil {
		cfg.RecordShapes = *doc.Options.RecordShapes
	}
	if doc.Options.WithStack != nil {
		cfg.CaptureStack = *doc.Options.WithStack
	}
	if doc.Options.ProfileMemory != nil {
		cfg.RecordMemory = *doc.Options.ProfileMemory
	}
	if doc.Output.ExportTrace != nil {
		cfg.ExportTrace = *doc.Output.ExportTrace
	}
	if doc.Output.FilePattern != nil {
		cfg.OutputPattern = *doc.Output.FilePattern
	}
	if doc.Advanced.TargetModule != nil {
		cfg.TargetModule = *doc.Advanced.TargetModule
	}
	if doc.Advanced.TargetSymbol != nil {
		cfg.TargetSymbol = *doc.Advanced.TargetSymbol
	}
	if doc.Advanced.Debug != nil {
		cfg.Debug = *doc.Advanced.Debug
	}
}

// mergeEnv overlays environment variables. Each field resolves
// independently; a malformed value leaves the lower-precedence value in
// place with a single warning, never failing process startup.
func mergeEnv(cfg *Config, logger zerolog.Logger) {
	if v, ok := os.LookupEnv(constants.EnvRanges); ok {
		cfg.Ranges = parseRangesLogged(v, logger)
	}
	if v, ok := os.LookupEnv(constants.EnvActivities); ok {
		cfg.Activities = parseActivitiesLogged(v, cfg.Activities, logger)
	}

	mergeBoolEnv(&cfg.RecordShapes, constants.EnvRecordShapes, logger)
	mergeBoolEnv(&cfg.CaptureStack, constants.EnvWithStack, logger)
	mergeBoolEnv(&cfg.RecordMemory, constants.EnvMemory, logger)
	mergeBoolEnv(&cfg.ExportTrace, constants.EnvExportTrace, logger)
	mergeBoolEnv(&cfg.Debug, constants.EnvDebug, logger)

	if v, ok := os.LookupEnv(constants.EnvOutput); ok {
		cfg.OutputPattern = v
	}
	if v, ok := os.LookupEnv(constants.EnvTargetModule); ok {
		cfg.TargetModule = v
	}
	if v, ok := os.LookupEnv(constants.EnvTargetSymbol); ok {
		cfg.TargetSymbol = v
	}
}

func mergeBoolEnv(dst *bool, name string, logger zerolog.Logger) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}

	switch {
	case strings.EqualFold(v, "true"):
		*dst = true
	case strings.EqualFold(v, "false"):
		*dst = false
	default:
		logger.Warn().Str("var", name).Str("value", v).Msg("Invalid boolean, keeping previous value")
	}
}

func parseRangesLogged(s string, logger zerolog.Logger) []Range {
	ranges, warnings := ParseRanges(s)
	for _, w := range warnings {
		logger.Warn().Str("ranges", s).Msg(w)
	}
	return ranges
}

func parseActivitiesLogged(s string, fallback []Activity, logger zerolog.Logger) []Activity {
	var activities []Activity
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		switch strings.ToUpper(token) {
		case "CPU":
			activities = append(activities, ActivityCPU)
		case "ACCELERATOR", "CUDA":
			// CUDA is accepted as an alias for the fleet this serves.
			activities = append(activities, ActivityAccelerator)
		default:
			logger.Warn().Str("activity", token).Msg("Unknown activity, dropped")
		}
	}

	if len(activities) == 0 {
		logger.Warn().Str("activities", s).Msg("No valid activities, keeping previous set")
		return fallback
	}
	return activities
}
