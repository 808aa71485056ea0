package contract

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/schema"
	"github.com/sirupsen/logrus"
)

// Default values for configuration.
const (
	DefaultSamples   = 1000
	DefaultTune      = 2000
	DefaultChains    = 20
	DefaultWorkers   = 4
	DefaultSeed      = 42
	DefaultPrecision = 2
	MaxPrecision     = 6
	DefaultCacheTTL  = 24 * time.Hour
	DefaultModel     = "poly2"
	DefaultLogLevel  = "warn"
)

// DefaultSource is the ECDC case distribution CSV.
const DefaultSource = "https://opendata.ecdc.europa.eu/covid19/casedistribution/csv"

// DateFormat is the calendar date representation accepted by date flags.
const DateFormat = "2006-01-02"

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// Config holds the runtime configuration for a forecasting session.
// This struct is the "final, validated" config.
type Config struct {
	Source   string
	CacheTTL time.Duration

	Country   string
	Countries []string // Experiment countries
	ModelKey  string
	Models    []string // Experiment model keys

	Samples int
	Tune    int
	Chains  int
	Workers int
	Seed    int64

	Limit       float64
	StartDate   *time.Time
	EndDate     *time.Time
	TargetDate  *time.Time
	TargetAhead *int // Days after the last observed date
	Combined    bool // Single combined band instead of per-parameter bands
	DryRun      bool
	Overrides   schema.PriorOverrides

	Scale      schema.PlotScale
	Precision  int
	Output     schema.OutputMode
	OutputFile string
	PlotFile   string
	Width      int // Terminal width override (0 = auto-detect)

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext

	LogLevel  logrus.Level
	UseEmojis bool // Enable emojis in output headers
	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Source         string `mapstructure:"source"`
	CacheTTL       string `mapstructure:"cache-ttl"`
	Precision      int    `mapstructure:"precision"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Width          int    `mapstructure:"width"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunBackend     string `mapstructure:"run-backend"`
	RunDBConnect   string `mapstructure:"run-db-connect"`
	LogLevel       string `mapstructure:"log-level"`
	Emoji          string `mapstructure:"emoji"`
	Color          string `mapstructure:"color"`

	// --- Fields shared by forecast, fit, priors and experiment ---
	Country  string   `mapstructure:"country"`
	Model    string   `mapstructure:"model"`
	Samples  int      `mapstructure:"samples"`
	Tune     *int     `mapstructure:"tune"`
	Chains   int      `mapstructure:"chains"`
	Workers  int      `mapstructure:"workers"`
	Seed     int64    `mapstructure:"seed"`
	Limit    float64  `mapstructure:"limit"`
	Start    string   `mapstructure:"start"`
	End      string   `mapstructure:"end"`
	Target   string   `mapstructure:"target"`
	Scale    string   `mapstructure:"scale"`
	PlotFile string   `mapstructure:"plot-file"`
	Combined bool     `mapstructure:"combined"`
	DryRun   bool     `mapstructure:"dry-run"`
	Prior    []string `mapstructure:"prior"`

	// --- Fields from experimentCmd.Flags() ---
	Countries string `mapstructure:"countries"`
	Models    string `mapstructure:"models"`

	// --- Prior overrides from config file ---
	Priors map[string][]float64 `mapstructure:"priors"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Countries = slices.Clone(c.Countries)
	clone.Models = slices.Clone(c.Models)
	if c.Overrides != nil {
		clone.Overrides = make(schema.PriorOverrides, len(c.Overrides))
		for k, v := range c.Overrides {
			clone.Overrides[k] = slices.Clone(v)
		}
	}
	clone.StartDate = clonePtr(c.StartDate)
	clone.EndDate = clonePtr(c.EndDate)
	clone.TargetDate = clonePtr(c.TargetDate)
	clone.TargetAhead = clonePtr(c.TargetAhead)
	return &clone
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateSamplingInputs(cfg, input); err != nil {
		return err
	}
	if err := processDates(cfg, input); err != nil {
		return err
	}
	if err := processPriorOverrides(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Run Backend Validation ---
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	// Cache and run tracking must not share a SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runDBPath := cfg.RunDBConnect
		if runDBPath == "" {
			runDBPath = GetRunDBFilePath()
		}
		if cacheDBPath == runDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates output and presentation fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.Source = strings.TrimSpace(input.Source)
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	cfg.OutputFile = input.OutputFile
	cfg.PlotFile = input.PlotFile
	cfg.Width = input.Width
	cfg.Combined = input.Combined
	cfg.DryRun = input.DryRun

	emojis, err := ParseBoolString(defaultString(input.Emoji, "no"))
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	colors, err := ParseBoolString(defaultString(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Cache TTL ---
	cfg.CacheTTL = DefaultCacheTTL
	if input.CacheTTL != "" {
		ttl, err := time.ParseDuration(input.CacheTTL)
		if err != nil || ttl < 0 {
			return fmt.Errorf("invalid cache TTL '%s'. Expected a non-negative duration such as 12h", input.CacheTTL)
		}
		cfg.CacheTTL = ttl
	}

	// --- 2. Precision and Output ---
	cfg.Precision = input.Precision
	if cfg.Precision == 0 {
		cfg.Precision = DefaultPrecision
	}
	if cfg.Precision < 0 || cfg.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}

	cfg.Output = schema.OutputMode(strings.ToLower(defaultString(input.Output, string(schema.TextOut))))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	// An empty scale lets the model family pick one.
	cfg.Scale = schema.PlotScale(strings.ToLower(strings.TrimSpace(input.Scale)))
	if cfg.Scale != "" && cfg.Scale != schema.LinScale && cfg.Scale != schema.LogScale {
		return fmt.Errorf("invalid scale '%s'. must be lin or log", input.Scale)
	}

	// --- 3. Log level ---
	level, err := logrus.ParseLevel(defaultString(input.LogLevel, DefaultLogLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}
	cfg.LogLevel = level

	// --- 4. Country and models ---
	cfg.Country = strings.TrimSpace(input.Country)
	if cfg.Country == "" {
		cfg.Country = schema.WorldCountry
	}
	cfg.ModelKey = strings.TrimSpace(defaultString(input.Model, DefaultModel))
	cfg.Countries = splitList(input.Countries)
	if len(cfg.Countries) == 0 {
		cfg.Countries = []string{cfg.Country}
	}
	cfg.Models = splitList(input.Models)
	if len(cfg.Models) == 0 {
		cfg.Models = slices.Clone(schema.DefaultExperimentModels)
	}
	return nil
}

// validateSamplingInputs applies sampler defaults and bounds.
func validateSamplingInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Samples = defaultInt(input.Samples, DefaultSamples)
	if cfg.Samples < 1 {
		return fmt.Errorf("samples must be greater than 0 (received %d)", input.Samples)
	}
	cfg.Tune = DefaultTune
	if input.Tune != nil {
		if *input.Tune < 0 {
			return fmt.Errorf("tune must not be negative (received %d)", *input.Tune)
		}
		cfg.Tune = *input.Tune
	}
	cfg.Chains = defaultInt(input.Chains, DefaultChains)
	if cfg.Chains < 1 {
		return fmt.Errorf("chains must be greater than 0 (received %d)", input.Chains)
	}
	cfg.Workers = defaultInt(input.Workers, DefaultWorkers)
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Seed = input.Seed
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if input.Limit < 0 || math.IsNaN(input.Limit) {
		return fmt.Errorf("limit must not be negative (received %v)", input.Limit)
	}
	cfg.Limit = input.Limit
	return nil
}

// processDates parses the window and target dates. A target of "+N" means
// N days after the last observed date and is resolved once data is loaded.
func processDates(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.StartDate, err = parseOptionalDate("start", input.Start); err != nil {
		return err
	}
	if cfg.EndDate, err = parseOptionalDate("end", input.End); err != nil {
		return err
	}
	if cfg.StartDate != nil && cfg.EndDate != nil && cfg.StartDate.After(*cfg.EndDate) {
		return fmt.Errorf("start date (%s) cannot be after end date (%s)", cfg.StartDate.Format(DateFormat), cfg.EndDate.Format(DateFormat))
	}

	target := strings.TrimSpace(input.Target)
	if rest, ok := strings.CutPrefix(target, "+"); ok {
		days, err := strconv.Atoi(strings.TrimSuffix(rest, "d"))
		if err != nil || days < 1 {
			return fmt.Errorf("invalid target '%s'. Expected YYYY-MM-DD or +N days", input.Target)
		}
		cfg.TargetAhead = &days
		return nil
	}
	if cfg.TargetDate, err = parseOptionalDate("target", target); err != nil {
		return err
	}
	return nil
}

// processPriorOverrides merges config file priors with --prior flags.
// Flags take precedence.
func processPriorOverrides(cfg *Config, input *ConfigRawInput) error {
	overrides := schema.PriorOverrides{}
	maps.Copy(overrides, input.Priors)
	for _, raw := range input.Prior {
		parsed, err := schema.ParsePriorOverrides(raw)
		if err != nil {
			return err
		}
		maps.Copy(overrides, parsed)
	}
	if len(overrides) > 0 {
		cfg.Overrides = overrides
	}
	return nil
}

// ForecastArgs holds per-call forecast arguments supplied outside the CLI,
// such as MCP tool calls. Empty fields keep the base config.
type ForecastArgs struct {
	Country string
	Model   string
	Start   string
	End     string
	Target  string
	Prior   string
	Samples int
}

// RevalidateForecast applies args to cfg and validates them with the same
// rules as the command line.
func RevalidateForecast(cfg *Config, args ForecastArgs) error {
	if c := strings.TrimSpace(args.Country); c != "" {
		cfg.Country = c
	}
	if m := strings.TrimSpace(args.Model); m != "" {
		cfg.ModelKey = m
	}
	if args.Samples < 0 {
		return fmt.Errorf("samples must be greater than 0 (received %d)", args.Samples)
	}
	if args.Samples > 0 {
		cfg.Samples = args.Samples
	}

	if args.Start != "" || args.End != "" || args.Target != "" {
		input := &ConfigRawInput{Start: args.Start, End: args.End, Target: args.Target}
		if input.Start == "" && cfg.StartDate != nil {
			input.Start = cfg.StartDate.Format(DateFormat)
		}
		if input.End == "" && cfg.EndDate != nil {
			input.End = cfg.EndDate.Format(DateFormat)
		}
		cfg.TargetDate, cfg.TargetAhead = nil, nil
		if err := processDates(cfg, input); err != nil {
			return err
		}
	}

	if args.Prior != "" {
		parsed, err := schema.ParsePriorOverrides(args.Prior)
		if err != nil {
			return err
		}
		merged := schema.PriorOverrides{}
		maps.Copy(merged, cfg.Overrides)
		maps.Copy(merged, parsed)
		cfg.Overrides = merged
	}
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

func parseOptionalDate(name, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date '%s'. Expected YYYY-MM-DD: %v", name, s, err)
	}
	return &t, nil
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
