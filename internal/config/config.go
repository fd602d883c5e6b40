package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvHome             = "RXSCRIPTS_HOME"
	EnvOutputRoot       = "RXSCRIPTS_OUTPUT_ROOT"
	EnvScriptExt        = "RXSCRIPTS_SCRIPT_EXT"
	EnvCompressionLevel = "RXSCRIPTS_COMPRESSION_LEVEL"
)

// DefaultCompressionLevel lets zlib pick its default level.
const DefaultCompressionLevel = -1

// Config holds application configuration.
type Config struct {
	// OutputRoot is the parent of the timestamped directories written by
	// extract-all.
	OutputRoot string `json:"output_root"`

	// SavedDir is where single-script extraction writes by default.
	SavedDir string `json:"saved_dir"`

	// ScriptExt is the extension of extracted files and the filter applied
	// to injection inputs. Includes the leading dot.
	ScriptExt string `json:"script_ext"`

	// UpdatedSuffix is appended to the container's base name to derive the
	// injection output path.
	UpdatedSuffix string `json:"updated_suffix"`

	// CompressionLevel is the zlib level for injected payloads (-1..9).
	// Nil means DefaultCompressionLevel; a pointer so 0 (store) can be set.
	CompressionLevel *int `json:"compression_level,omitempty"`

	// CacheSize bounds the container cache used by the MCP server and web viewer.
	CacheSize int `json:"cache_size"`

	// DisableJournal turns off the sqlite run journal.
	DisableJournal bool `json:"disable_journal,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputRoot:    "saved",
		SavedDir:      "saved",
		ScriptExt:     ".rb",
		UpdatedSuffix: "_updated",
		CacheSize:     8,
	}
}

// Level returns the effective compression level.
func (c *Config) Level() int {
	if c.CompressionLevel == nil {
		return DefaultCompressionLevel
	}
	return *c.CompressionLevel
}

// Validate checks values that would otherwise fail deep inside an operation.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.ScriptExt, ".") || len(c.ScriptExt) < 2 {
		return fmt.Errorf("script_ext must start with a dot, got %q", c.ScriptExt)
	}
	if lvl := c.Level(); lvl < -1 || lvl > 9 {
		return fmt.Errorf("compression_level must be between -1 and 9, got %d", lvl)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.UpdatedSuffix == "" {
		return errors.New("updated_suffix must not be empty")
	}
	return nil
}

// BaseDir returns the directory holding config.json and the journal:
// $RXSCRIPTS_HOME if set, else ~/.rxscripts.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rxscripts"), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.rxscripts.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.rxscripts) and repo (.rxscripts) directories.
// Repo config is found by walking upward from startDir to find the nearest .rxscripts/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .rxscripts/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".rxscripts", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadEnv reads a .env file from the working directory if one exists.
// Variables already set in the process environment are not overwritten.
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// ApplyEnv overlays RXSCRIPTS_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvOutputRoot); v != "" {
		cfg.OutputRoot = v
	}
	if v := os.Getenv(EnvScriptExt); v != "" {
		cfg.ScriptExt = v
	}
	if v := os.Getenv(EnvCompressionLevel); v != "" {
		lvl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCompressionLevel, err)
		}
		cfg.CompressionLevel = &lvl
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.OutputRoot = firstNonEmpty(overlay.OutputRoot, base.OutputRoot)
	result.SavedDir = firstNonEmpty(overlay.SavedDir, base.SavedDir)
	result.ScriptExt = firstNonEmpty(overlay.ScriptExt, base.ScriptExt)
	result.UpdatedSuffix = firstNonEmpty(overlay.UpdatedSuffix, base.UpdatedSuffix)

	result.CompressionLevel = overlay.CompressionLevel
	if result.CompressionLevel == nil {
		result.CompressionLevel = base.CompressionLevel
	}

	result.CacheSize = overlay.CacheSize
	if result.CacheSize == 0 {
		result.CacheSize = base.CacheSize
	}

	// Booleans: overlay wins if true, else base
	result.DisableJournal = base.DisableJournal || overlay.DisableJournal

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
