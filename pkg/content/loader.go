package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/textfilter"
)

// Issue is a content defect found while loading. Issues are logged and the
// offending item is skipped.
type Issue struct {
	Source string
	Err    error
}

func (i Issue) Error() string {
	return i.Source + ": " + i.Err.Error()
}

// Loader reads content packs from disk. Files are merged in lexical path
// order; on duplicate IDs the first definition wins.
type Loader struct {
	logger *slog.Logger
	strict bool
	issues []Issue
}

// NewLoader creates a loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// WithStrict rejects unknown fields in content files.
// Returns the Loader for method chaining
func (l *Loader) WithStrict(strict bool) *Loader {
	l.strict = strict
	return l
}

// Issues returns every defect found by the last load.
func (l *Loader) Issues() []Issue {
	return slices.Clone(l.issues)
}

// Supported reports whether a file extension is a content format.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDir loads, merges and validates every content file below dir.
func (l *Loader) LoadDir(dir string) (*Pack, error) {
	l.issues = nil

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk content directory: %w", err)
	}
	slices.Sort(paths)

	pack := &Pack{}
	for _, path := range paths {
		part, err := l.decodeFile(path)
		if err != nil {
			l.report(path, err)
			continue
		}
		l.merge(pack, part, path)
	}

	l.Validate(pack)
	l.logger.Info("Loaded content pack",
		"dir", dir,
		"files", len(paths),
		"scenarios", len(pack.Scenarios),
		"characters", len(pack.Characters),
		"chapters", len(pack.Chapters),
		"issues", len(l.issues))
	return pack, nil
}

// LoadFile loads and validates a single content file.
func (l *Loader) LoadFile(path string) (*Pack, error) {
	l.issues = nil
	pack, err := l.decodeFile(path)
	if err != nil {
		return nil, err
	}
	l.Validate(pack)
	return pack, nil
}

func (l *Loader) decodeFile(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}
	return Decode(filepath.Ext(path), data, l.strict)
}

// Decode parses one content document. TOML and YAML documents are converted
// to JSON first so every format shares the json struct tags.
func Decode(ext string, data []byte, strict bool) (*Pack, error) {
	switch strings.ToLower(ext) {
	case ".json":
	case ".toml":
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert toml: %w", err)
		}
		data = converted
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml: %w", err)
		}
		data = converted
	default:
		return nil, fmt.Errorf("unsupported content format %q", ext)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	var pack Pack
	if err := dec.Decode(&pack); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	return &pack, nil
}

func (l *Loader) report(source string, err error) {
	l.logger.Warn("Content issue", "source", source, "error", err)
	l.issues = append(l.issues, Issue{Source: source, Err: err})
}

func (l *Loader) merge(dst, src *Pack, source string) {
	dst.Scenarios = mergeByID(l, dst.Scenarios, src.Scenarios, source, "scenario",
		func(g dialogue.ScenarioGraph) string { return g.ID })
	dst.Characters = mergeByID(l, dst.Characters, src.Characters, source, "character",
		func(c Character) string { return textfilter.NormalizeID(c.ID) })
	dst.Thresholds = mergeByID(l, dst.Thresholds, src.Thresholds, source, "threshold",
		func(t relationship.Threshold) string { return t.ID })
	dst.Chapters = mergeByID(l, dst.Chapters, src.Chapters, source, "chapter",
		func(c progression.Chapter) string { return fmt.Sprint(c.Number) })
	dst.Endings = mergeByID(l, dst.Endings, src.Endings, source, "ending",
		func(e progression.EndingCondition) string { return e.ID })
	dst.ScenarioRules = append(dst.ScenarioRules, src.ScenarioRules...)

	mergeScalar(l, &dst.DefaultEnding, src.DefaultEnding, source, "default_ending")
	mergeScalar(l, &dst.DefaultScenario, src.DefaultScenario, source, "default_scenario")
	mergeScalar(l, &dst.OpeningScenario, src.OpeningScenario, source, "opening_scenario")
	mergeScalar(l, &dst.MaxScore, src.MaxScore, source, "max_score")
	mergeScalar(l, &dst.LevelStep, src.LevelStep, source, "level_step")
}

func mergeByID[T any](l *Loader, dst, src []T, source, kind string, id func(T) string) []T {
	seen := make(map[string]bool, len(dst))
	for _, item := range dst {
		seen[id(item)] = true
	}
	for _, item := range src {
		key := id(item)
		if seen[key] {
			l.report(source, fmt.Errorf("duplicate %s %q skipped", kind, key))
			continue
		}
		seen[key] = true
		dst = append(dst, item)
	}
	return dst
}

func mergeScalar[T comparable](l *Loader, dst *T, src T, source, name string) {
	var zero T
	if src == zero {
		return
	}
	if *dst != zero && *dst != src {
		l.report(source, fmt.Errorf("%s already set to %v, ignoring %v", name, *dst, src))
		return
	}
	*dst = src
}
