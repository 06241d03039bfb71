package application

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines the billing run configuration.
type Config struct {
	Currency        string  `yaml:"currency"`
	MoneyScale      int     `yaml:"money_scale"`
	ReconTolerance  float64 `yaml:"recon_tolerance"`
	ComparisonMode  string  `yaml:"comparison_mode"`
	KWhPerM3        float64 `yaml:"kwh_per_m3"`
	VacancyToOwner  bool    `yaml:"vacancy_to_owner"`
	ReadingLookback int     `yaml:"reading_lookback_days"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Currency:        getenvDefault("CURRENCY", "EUR"),
		MoneyScale:      getenvIntDefault("MONEY_SCALE", 2),
		ReconTolerance:  getenvFloatDefault("RECON_TOLERANCE", 0),
		ComparisonMode:  getenvDefault("COMPARISON_MODE", "include_self"),
		KWhPerM3:        getenvFloatDefault("KWH_PER_M3", 35),
		VacancyToOwner:  false,
		ReadingLookback: getenvIntDefault("READING_LOOKBACK_DAYS", 90),
	}

	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.MoneyScale <= 0 {
		cfg.MoneyScale = 2
	}
	if cfg.ComparisonMode == "" {
		cfg.ComparisonMode = "include_self"
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
