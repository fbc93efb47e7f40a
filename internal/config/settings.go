package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "FMD"

	appDir = ".factorio-mod-downloader"

	// MaxConcurrentModsLimit caps parallel DownloadMod invocations.
	MaxConcurrentModsLimit = 10
)

// DefaultExcludedMods are catalog entries that ship with the game and cannot
// be downloaded from the mod storage.
var DefaultExcludedMods = []string{"base", "core", "freeplay", "elevated-rails", "quality", "space-age"}

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	OutputDir         string  `json:"output_dir" envconfig:"OUTPUT_DIR"`
	Resume            bool    `json:"resume" envconfig:"RESUME"`
	MaxRetries        int     `json:"max_retries" envconfig:"MAX_RETRIES"`
	RetryDelay        float64 `json:"retry_delay" envconfig:"RETRY_DELAY"`
	RetryExponent     float64 `json:"retry_exponent" envconfig:"RETRY_EXPONENT"`
	MaxConcurrentMods int     `json:"max_concurrent_mods" envconfig:"MAX_CONCURRENT_MODS"`

	// Resolution settings
	IncludeOptional bool     `json:"include_optional" envconfig:"INCLUDE_OPTIONAL"`
	OptionalDepth   int      `json:"optional_depth" envconfig:"OPTIONAL_DEPTH"`
	MaxDepth        int      `json:"max_depth" envconfig:"MAX_DEPTH"`
	PageRetries     int      `json:"page_retries" envconfig:"PAGE_RETRIES"`
	ExcludedMods    []string `json:"excluded_mods" envconfig:"EXCLUDED_MODS"`

	// Catalog endpoints
	Provider      string `json:"provider" envconfig:"PROVIDER"`
	APIURL        string `json:"api_url" envconfig:"API_URL"`
	CatalogURL    string `json:"catalog_url" envconfig:"CATALOG_URL"`
	MirrorPageURL string `json:"mirror_page_url" envconfig:"MIRROR_PAGE_URL"`
	StorageURL    string `json:"storage_url" envconfig:"STORAGE_URL"`

	// HTTP settings
	RequestTimeout    float64 `json:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RequestsPerSecond float64 `json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	RequestBurst      int     `json:"request_burst" envconfig:"REQUEST_BURST"`
	UserAgent         string  `json:"user_agent" envconfig:"USER_AGENT"`

	// Logging
	LogLevel  string `json:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" envconfig:"LOG_FORMAT"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		OutputDir:         DefaultModsDir(),
		Resume:            true,
		MaxRetries:        3,
		RetryDelay:        2,
		RetryExponent:     1,
		MaxConcurrentMods: 1,

		IncludeOptional: false,
		OptionalDepth:   1,
		MaxDepth:        10,
		PageRetries:     2,
		ExcludedMods:    append([]string(nil), DefaultExcludedMods...),

		Provider:      "api",
		APIURL:        "https://mods.factorio.com/api/mods",
		CatalogURL:    "https://mods.factorio.com/mod",
		MirrorPageURL: "https://re146.dev/factorio/mods/en#",
		StorageURL:    "https://mods-storage.re146.dev",

		RequestTimeout:    30,
		RequestsPerSecond: 2,
		RequestBurst:      4,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// DefaultModsDir returns the Factorio mods directory of the current user.
func DefaultModsDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Factorio", "mods")
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("factorio", "mods")
	}
	return filepath.Join(homeDir, ".factorio", "mods")
}

// DefaultPath returns the default location of the config file.
func DefaultPath() string {
	return filepath.Join(AppDir(), "config.yaml")
}

// AppDir returns the per-user application directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return appDir
	}
	return filepath.Join(homeDir, appDir)
}

// Load reads settings from a YAML file and applies environment overrides.
//
// A missing file is not an error: defaults are used.
func Load(path string) (*Settings, error) {
	settings, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, settings); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return settings, nil
}

// LoadFile reads settings from a YAML file without environment overrides.
// Commands that write the file back use it so overrides are not persisted.
func LoadFile(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}
	return settings, nil
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid value at once.
func (s *Settings) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(s.OutputDir) == "" {
		result = multierror.Append(result, fmt.Errorf("output_dir must not be empty"))
	}
	if s.MaxRetries < 1 {
		result = multierror.Append(result, fmt.Errorf("max_retries must be at least 1, got %d", s.MaxRetries))
	}
	if s.RetryDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("retry_delay must not be negative, got %v", s.RetryDelay))
	}
	if s.RetryExponent < 1 {
		result = multierror.Append(result, fmt.Errorf("retry_exponent must be at least 1, got %v", s.RetryExponent))
	}
	if s.MaxConcurrentMods < 1 || s.MaxConcurrentMods > MaxConcurrentModsLimit {
		result = multierror.Append(result, fmt.Errorf("max_concurrent_mods must be between 1 and %d, got %d", MaxConcurrentModsLimit, s.MaxConcurrentMods))
	}
	if s.MaxDepth < 1 {
		result = multierror.Append(result, fmt.Errorf("max_depth must be at least 1, got %d", s.MaxDepth))
	}
	if s.PageRetries < 1 {
		result = multierror.Append(result, fmt.Errorf("page_retries must be at least 1, got %d", s.PageRetries))
	}
	if s.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be positive, got %v", s.RequestTimeout))
	}
	if s.RequestsPerSecond < 0 {
		result = multierror.Append(result, fmt.Errorf("requests_per_second must not be negative, got %v", s.RequestsPerSecond))
	}
	if s.Provider != "api" && s.Provider != "scraper" {
		result = multierror.Append(result, fmt.Errorf("provider must be api or scraper, got %q", s.Provider))
	}
	for key, raw := range map[string]string{
		"api_url":     s.APIURL,
		"catalog_url": s.CatalogURL,
		"storage_url": s.StorageURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s must be an absolute URL, got %q", key, raw))
		}
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}

	return result.ErrorOrNil()
}

// Excluded returns the reserved mod names as a set.
func (s *Settings) Excluded() model.NameSet {
	return model.NewNameSet(s.ExcludedMods...)
}

// RetryDelayDuration converts RetryDelay to a time.Duration.
func (s *Settings) RetryDelayDuration() time.Duration {
	return time.Duration(s.RetryDelay * float64(time.Second))
}

// RequestTimeoutDuration converts RequestTimeout to a time.Duration.
func (s *Settings) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout * float64(time.Second))
}

// Keys returns the setting names accepted by Get and Set.
func (s *Settings) Keys() []string {
	values, err := s.values()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of the named setting. Lists are comma separated.
func (s *Settings) Get(key string) (string, error) {
	values, err := s.values()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", s.unknownKey(key)
	}
	return formatValue(value), nil
}

// Set parses raw according to the type of the named setting and stores it.
//
// Booleans accept true/yes/1/on and false/no/0/off. Lists are comma
// separated.
func (s *Settings) Set(key, raw string) error {
	values, err := s.values()
	if err != nil {
		return err
	}
	current, ok := values[key]
	if !ok {
		return s.unknownKey(key)
	}

	switch current.(type) {
	case bool:
		b, err := parseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		values[key] = b
	case float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", key, raw)
		}
		values[key] = f
	case []any, nil:
		list := []string{}
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		values[key] = list
	default:
		values[key] = raw
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	updated := DefaultSettings()
	if err := yaml.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("%s: invalid value %q: %w", key, raw, err)
	}
	*s = *updated
	return nil
}

func (s *Settings) values() (map[string]any, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Settings) unknownKey(key string) error {
	return fmt.Errorf("unknown setting %q, available: %s", key, strings.Join(s.Keys(), ", "))
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = formatValue(item)
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(v)
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean, use true/false, yes/no, 1/0 or on/off", raw)
}
