package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config controls one generator run. It is read from an optional YAML file;
// flags given on the command line take precedence.
type Config struct {
	Driver    string   `yaml:"driver"`
	DSN       string   `yaml:"dsn"`
	Tables    []string `yaml:"tables"`
	Package   string   `yaml:"package"`
	Out       string   `yaml:"out"`
	Overwrite bool     `yaml:"overwrite"`
	Workers   int      `yaml:"workers"`
	LogLevel  string   `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		Driver:   "sqlite3",
		Package:  "models",
		Out:      "./models",
		Workers:  4,
		LogLevel: "info",
	}
}

// loadConfig reads path over the defaults. An empty path returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if _, ok := introspectors[c.Driver]; !ok {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Package == "" {
		return fmt.Errorf("package name is required")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// parseFlags builds the configuration from args. Only flags that were set
// explicitly override values from the config file.
func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tablex-gen", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML config file")
		driver     = fs.String("driver", "", "database driver (sqlite3, sqlite, mysql, postgres, pgx)")
		dsn        = fs.String("dsn", "", "database connection string")
		tables     = fs.String("table", "", "comma separated tables to generate; empty means all")
		pkg        = fs.String("pkg", "", "package name of the generated code")
		out        = fs.String("out", "", "output directory")
		overwrite  = fs.Bool("overwrite", false, "overwrite existing files")
		workers    = fs.Int("workers", 0, "tables generated in parallel")
		logLevel   = fs.String("log-level", "", "debug, info, warn, error or silent")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "dsn":
			cfg.DSN = *dsn
		case "table":
			cfg.Tables = splitList(*tables)
		case "pkg":
			cfg.Package = *pkg
		case "out":
			cfg.Out = *out
		case "overwrite":
			cfg.Overwrite = *overwrite
		case "workers":
			cfg.Workers = *workers
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	return cfg, cfg.validate()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
