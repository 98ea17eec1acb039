package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Settings is the site-wide configuration (company details, checkout defaults).
// It is read once at start from a YAML file and never stored in the database.
type Settings struct {
	CompanyName           string            `mapstructure:"company_name"`
	ContactEmail          string            `mapstructure:"contact_email"`
	ContactPhone          string            `mapstructure:"contact_phone"`
	OrderNumberPrefix     string            `mapstructure:"order_number_prefix"`
	Currency              string            `mapstructure:"currency"`
	DeliveryCosts         map[string]string `mapstructure:"delivery_costs"`
	FreeDeliveryThreshold string            `mapstructure:"free_delivery_threshold"`
}

var siteSettings = DefaultSettings()

// DefaultSettings is used when no settings file is present
func DefaultSettings() *Settings {
	return &Settings{
		CompanyName:       "Ironworks",
		OrderNumberPrefix: "ORD",
		Currency:          "BYN",
		DeliveryCosts: map[string]string{
			"pickup":            "0",
			"courier":           "15.00",
			"post":              "10.00",
			"transport_company": "25.00",
		},
	}
}

// LoadSettings reads the YAML settings file at path; a missing file keeps the defaults
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := DefaultSettings()
	v.SetDefault("company_name", defaults.CompanyName)
	v.SetDefault("order_number_prefix", defaults.OrderNumberPrefix)
	v.SetDefault("currency", defaults.Currency)
	v.SetDefault("delivery_costs", defaults.DeliveryCosts)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		slog.Info("settings file not found, using defaults", "path", path)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	siteSettings = &s
	return &s, nil
}

// Validate checks that money values parse
func (s *Settings) Validate() error {
	for method, cost := range s.DeliveryCosts {
		if _, err := decimal.NewFromString(cost); err != nil {
			return fmt.Errorf("invalid delivery cost for %s: %w", method, err)
		}
	}
	if s.FreeDeliveryThreshold != "" {
		if _, err := decimal.NewFromString(s.FreeDeliveryThreshold); err != nil {
			return fmt.Errorf("invalid free_delivery_threshold: %w", err)
		}
	}
	return nil
}

// DeliveryCost returns the delivery price for a method given the order subtotal
func (s *Settings) DeliveryCost(method string, subtotal decimal.Decimal) decimal.Decimal {
	if s.FreeDeliveryThreshold != "" {
		threshold, _ := decimal.NewFromString(s.FreeDeliveryThreshold)
		if threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
			return decimal.Zero
		}
	}
	cost, err := decimal.NewFromString(s.DeliveryCosts[method])
	if err != nil {
		return decimal.Zero
	}
	return cost
}

// GetSettings returns the loaded site settings
func GetSettings() *Settings {
	return siteSettings
}

// SetSettings replaces the site settings (primarily for testing)
func SetSettings(s *Settings) {
	siteSettings = s
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
