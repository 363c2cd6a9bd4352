package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".co2lens"

// Global configuration structure.
type Global struct {
	DataFile    string   `mapstructure:"data_file" yaml:"data_file"`
	SessionsDir string   `mapstructure:"sessions_dir" yaml:"sessions_dir"`
	DBPath      string   `mapstructure:"db_path" yaml:"db_path"`
	LogLevel    string   `mapstructure:"log_level" yaml:"log_level"`
	ServerAddr  string   `mapstructure:"server_addr" yaml:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// Dataset parsing
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	EntityColumn     string `mapstructure:"entity_column" yaml:"entity_column,omitempty"`
	EmissionsColumn  string `mapstructure:"emissions_column" yaml:"emissions_column,omitempty"`
	PeriodColumn     string `mapstructure:"period_column" yaml:"period_column,omitempty"`
	PopulationColumn string `mapstructure:"population_column" yaml:"population_column,omitempty"`
	MaxRows          int    `mapstructure:"max_rows" yaml:"max_rows"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"data_file", "sessions_dir", "db_path", "log_level", "server_addr", "cors_origins",
	"delimiter", "entity_column", "emissions_column", "period_column", "population_column", "max_rows",
}

// DatasetOptions converts the parsing keys into loader options.
func (c *Global) DatasetOptions() dataset.Options {
	opt := dataset.DefaultOptions()
	if c.MaxRows > 0 {
		opt.MaxRows = c.MaxRows
	}
	if d := c.Delimiter; d != "" {
		switch strings.ToLower(d) {
		case "tab", `\t`:
			opt.Delimiter = '\t'
		default:
			opt.Delimiter = []rune(d)[0]
		}
	}
	opt.Columns = dataset.ColumnMap{
		Entity:     c.EntityColumn,
		Emissions:  c.EmissionsColumn,
		Period:     c.PeriodColumn,
		Population: c.PopulationColumn,
	}
	return opt
}

// Set assigns a value by key. Unknown keys and malformed values are errors.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_file":
		c.DataFile = val
	case "sessions_dir":
		c.SessionsDir = val
	case "db_path":
		c.DBPath = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "server_addr":
		c.ServerAddr = val
	case "cors_origins":
		var out []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
		c.CORSOrigins = out
	case "delimiter":
		c.Delimiter = val
	case "entity_column":
		c.EntityColumn = val
	case "emissions_column":
		c.EmissionsColumn = val
	case "period_column":
		c.PeriodColumn = val
	case "population_column":
		c.PopulationColumn = val
	case "max_rows":
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("invalid int for max_rows: %v", val)
		}
		c.MaxRows = n
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the display value for key.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "data_file":
		return c.DataFile, nil
	case "sessions_dir":
		return c.SessionsDir, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "server_addr":
		return c.ServerAddr, nil
	case "cors_origins":
		return strings.Join(c.CORSOrigins, ","), nil
	case "delimiter":
		return c.Delimiter, nil
	case "entity_column":
		return c.EntityColumn, nil
	case "emissions_column":
		return c.EmissionsColumn, nil
	case "period_column":
		return c.PeriodColumn, nil
	case "population_column":
		return c.PopulationColumn, nil
	case "max_rows":
		return fmt.Sprintf("%d", c.MaxRows), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.co2lens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (including .env) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// A missing .env is fine; existing variables are never overridden.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CO2LENS")
	v.AutomaticEnv()

	v.SetDefault("log_level", "warn")
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("max_rows", dataset.DefaultOptions().MaxRows)
	// Keys without a default must still be bound for AutomaticEnv to see them.
	for _, k := range []string{"data_file", "sessions_dir", "db_path", "delimiter",
		"entity_column", "emissions_column", "period_column", "population_column"} {
		_ = v.BindEnv(k)
	}

	dir, err := homeDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil && !missingConfig(err, cfgFile) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// CO2LENS_CORS_ORIGINS arrives as one comma-separated string.
	if len(c.CORSOrigins) == 1 && strings.Contains(c.CORSOrigins[0], ",") {
		_ = c.Set("cors_origins", c.CORSOrigins[0])
	}
	if c.SessionsDir == "" {
		c.SessionsDir = filepath.Join(dir, "sessions")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "events.db")
	}
	for _, p := range []*string{&c.DataFile, &c.SessionsDir, &c.DBPath} {
		if *p == "" {
			continue
		}
		if *p, err = utils.ExpandHome(*p); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// missingConfig reports whether err only means there is no config file yet.
func missingConfig(err error, cfgFile string) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	if cfgFile != "" {
		_, statErr := os.Stat(cfgFile)
		return errors.Is(statErr, fs.ErrNotExist)
	}
	return false
}
