package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DetectorConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ObjectnessThreshold float64       `mapstructure:"objectness_threshold"`
	ScoreThreshold      float64       `mapstructure:"score_threshold"`
	IoUThreshold        float64       `mapstructure:"iou_threshold"`
	VehicleClasses      []int         `mapstructure:"vehicle_classes"`
}

type RecognizerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ExtractorConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
	MinLength     int     `mapstructure:"min_length"`
	MaxLength     int     `mapstructure:"max_length"`
	DebugDir      string  `mapstructure:"debug_dir"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type PricingConfig struct {
	BaseRate       float64 `mapstructure:"base_rate"`
	AdditionalRate float64 `mapstructure:"additional_rate"`
	FreeMinutes    int     `mapstructure:"free_minutes"`
	PeriodMinutes  int     `mapstructure:"period_minutes"`
}

// DemoConfig controls simulation-only behavior. ExitOffset is added to
// the wall clock when computing exit time so a batch run produces a
// non-zero parking duration; it must stay zero in a real deployment.
type DemoConfig struct {
	ExitOffset time.Duration `mapstructure:"exit_offset"`
}

type SimConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	EntryCount int    `mapstructure:"entry_count"`
	ExitIDs    []int  `mapstructure:"exit_ids"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Sim        SimConfig        `mapstructure:"sim"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("detector.base_url", "http://127.0.0.1:9090")
	v.SetDefault("detector.timeout", "10s")
	v.SetDefault("detector.objectness_threshold", 0.1)
	v.SetDefault("detector.score_threshold", 0.5)
	v.SetDefault("detector.iou_threshold", 0.5)
	// COCO class ids: car, bus, truck
	v.SetDefault("detector.vehicle_classes", []int{2, 5, 7})

	v.SetDefault("recognizer.base_url", "http://127.0.0.1:9091")
	v.SetDefault("recognizer.timeout", "10s")

	v.SetDefault("extractor.min_confidence", 0.3)
	v.SetDefault("extractor.min_length", 4)
	v.SetDefault("extractor.max_length", 9)
	v.SetDefault("extractor.debug_dir", "temp")

	v.SetDefault("ledger.path", "parking_data.json")

	v.SetDefault("pricing.base_rate", 10.0)
	v.SetDefault("pricing.additional_rate", 5.0)
	v.SetDefault("pricing.free_minutes", 30)
	v.SetDefault("pricing.period_minutes", 30)

	v.SetDefault("demo.exit_offset", "0s")

	v.SetDefault("sim.data_dir", "data")
	v.SetDefault("sim.entry_count", 10)
	v.SetDefault("sim.exit_ids", []int{1, 3, 5})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads configuration from the given file (optional), the working
// directory and GATE_* environment variables, with defaults for every knob.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path must not be empty")
	}
	if c.Extractor.MaxLength <= c.Extractor.MinLength {
		return fmt.Errorf("extractor.max_length must be greater than extractor.min_length")
	}
	if len(c.Detector.VehicleClasses) == 0 {
		return fmt.Errorf("detector.vehicle_classes must not be empty")
	}
	if c.Pricing.PeriodMinutes <= 0 {
		return fmt.Errorf("pricing.period_minutes must be positive")
	}
	return nil
}
