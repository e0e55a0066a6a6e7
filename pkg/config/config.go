// Package config loads carve settings from TOML or YAML files and turns
// them into options for the csg pipeline, the mesh kernel and the logger.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/model"
)

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("config: unsupported format")

// Config is the complete carve configuration.
type Config struct {
	CSG        CSG        `toml:"csg" yaml:"csg"`
	Engine     Engine     `toml:"engine" yaml:"engine"`
	Tessellate Tessellate `toml:"tessellate" yaml:"tessellate"`
	Log        Log        `toml:"log" yaml:"log"`
}

// CSG tunes the Boolean pipeline.
type CSG struct {
	MaxDepth int     `toml:"max_depth" yaml:"max_depth"`
	Samples  int     `toml:"samples" yaml:"samples"`
	Epsilon  float64 `toml:"epsilon" yaml:"epsilon"`
	Seed     int64   `toml:"seed" yaml:"seed"`
}

// Engine bounds design evaluation.
type Engine struct {
	TimeoutMS int `toml:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout is TimeoutMS as a duration.
func (e Engine) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// Kernel names accepted by Tessellate.Kernel.
const (
	KernelMesh = "mesh"
	KernelSDF  = "sdf"
)

// Tessellate selects the geometry kernel and the default resolution of
// generated primitives. SDFCells is the marching cubes resolution used for
// rounded boxes and by the sdf kernel.
type Tessellate struct {
	Kernel   string `toml:"kernel" yaml:"kernel"`
	Segments int    `toml:"segments" yaml:"segments"`
	SDFCells int    `toml:"sdf_cells" yaml:"sdf_cells"`
}

// Log configures the logger built by NewLogger. An empty File logs to
// stderr.
type Log struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CSG: CSG{
			MaxDepth: csg.DefaultMaxDepth,
			Samples:  csg.DefaultSamples,
			Epsilon:  csg.DefaultEpsilon,
			Seed:     csg.DefaultSeed,
		},
		Engine: Engine{TimeoutMS: 5000},
		Tessellate: Tessellate{
			Kernel:   KernelMesh,
			Segments: 32,
			SDFCells: 64,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads path on top of Default. The decoder is chosen by extension:
// .toml, .yaml or .yml. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		unmarshal = toml.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.CSG.MaxDepth < 0:
		return fmt.Errorf("config: csg.max_depth must not be negative, got %d", c.CSG.MaxDepth)
	case c.CSG.Samples <= 0:
		return fmt.Errorf("config: csg.samples must be positive, got %d", c.CSG.Samples)
	case c.CSG.Epsilon <= 0:
		return fmt.Errorf("config: csg.epsilon must be positive, got %g", c.CSG.Epsilon)
	case c.Engine.TimeoutMS <= 0:
		return fmt.Errorf("config: engine.timeout_ms must be positive, got %d", c.Engine.TimeoutMS)
	case c.Tessellate.Kernel != KernelMesh && c.Tessellate.Kernel != KernelSDF:
		return fmt.Errorf("config: tessellate.kernel must be %q or %q, got %q", KernelMesh, KernelSDF, c.Tessellate.Kernel)
	case c.Tessellate.Segments < model.MinSegments:
		return fmt.Errorf("config: tessellate.segments must be at least %d, got %d", model.MinSegments, c.Tessellate.Segments)
	case c.Tessellate.SDFCells <= 0:
		return fmt.Errorf("config: tessellate.sdf_cells must be positive, got %d", c.Tessellate.SDFCells)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// CSGOptions converts the csg section into pipeline options. Each call
// returns a fresh random source seeded from Seed.
func (c Config) CSGOptions() []csg.Option {
	return []csg.Option{
		csg.WithMaxDepth(c.CSG.MaxDepth),
		csg.WithSamples(c.CSG.Samples),
		csg.WithEpsilon(c.CSG.Epsilon),
		csg.WithRand(rand.New(rand.NewSource(c.CSG.Seed))),
	}
}
