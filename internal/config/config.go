package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
)

type Config struct {
	Environment string
	LogLevel    string

	Risk struct {
		Preset       string
		ParamsFile   string
		Correlations string
		Params       risk.RiskParameters
		Matrix       risk.CorrelationMatrix
	}

	Monitoring struct {
		MetricsAddr  string
		HealthMaxAge time.Duration
	}
}

// Development reports whether console logging should be used
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Load reads envFile (a missing file is fine), then builds the configuration from
// the environment. The risk preset is overlaid with RISK_PARAMS_FILE when set and
// the result is validated.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, loadError(err, "cannot read env file").WithContext("file", envFile)
		}
	}

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
	cfg.Risk.Preset = getEnv("RISK_PRESET", risk.PresetModerate)
	cfg.Risk.ParamsFile = getEnv("RISK_PARAMS_FILE", "")
	cfg.Risk.Correlations = getEnv("CORRELATION_FILE", "")
	cfg.Monitoring.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.Monitoring.HealthMaxAge = getEnvDuration("HEALTH_MAX_AGE", 5*time.Minute)

	params, err := risk.PresetByName(cfg.Risk.Preset)
	if err != nil {
		return nil, err
	}
	if cfg.Risk.ParamsFile != "" {
		if err := decodeYAMLFile(cfg.Risk.ParamsFile, &params); err != nil {
			return nil, err
		}
	}
	params.QuantityStep = getEnvFloat("RISK_QUANTITY_STEP", params.QuantityStep)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	cfg.Risk.Params = params

	if cfg.Risk.Correlations != "" {
		matrix := risk.CorrelationMatrix{}
		if err := decodeYAMLFile(cfg.Risk.Correlations, &matrix); err != nil {
			return nil, err
		}
		if err := matrix.Validate(); err != nil {
			return nil, loadError(err, "invalid correlation file").WithContext("file", cfg.Risk.Correlations)
		}
		cfg.Risk.Matrix = matrix
	}

	return cfg, nil
}

// decodeYAMLFile decodes path into out, keeping fields the file leaves out.
// Unknown keys are rejected so a misspelled limit cannot be silently ignored.
func decodeYAMLFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return loadError(err, "cannot open config file").WithContext("file", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return loadError(err, fmt.Sprintf("cannot decode %s", path)).WithContext("file", path)
	}
	return nil
}

func loadError(err error, message string) *rerrors.RiskError {
	e := rerrors.NewConfigurationError("config", "Load", message)
	e.Underlying = err
	return e
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
