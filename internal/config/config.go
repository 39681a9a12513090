// =============================================================================
// Invoice Mailer - Configuration Module
// =============================================================================
//
// This module loads the application configuration from three layers, the
// later overriding the earlier:
//   1. Built-in defaults
//   2. The YAML config file (config.yaml, optional)
//   3. Environment variables, prefixed INVOICER_ with "." replaced by "_"
//      (e.g. INVOICER_PRICING_TAX_PERCENT=18)
//
// A .env file is loaded into the environment first, so secrets can live
// there. The mail account and secret are also read from GMAIL_ACCOUNT and
// GMAIL_PASSWORD.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/invoice"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INVOICER"

// Malformed row policies.
const (
	OnMalformedAbort = "abort"
	OnMalformedSkip  = "skip"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the whole application configuration.
type Config struct {
	Company    CompanyConfig    `mapstructure:"company"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Template   TemplateConfig   `mapstructure:"template"`
	Input      InputConfig      `mapstructure:"input"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Log        LogConfig        `mapstructure:"log"`
}

// CompanyConfig is the issuing company printed on every invoice.
type CompanyConfig struct {
	Name string `mapstructure:"name"`

	// Address may span several lines.
	Address string `mapstructure:"address"`

	Contact string `mapstructure:"contact"`
}

// PricingConfig holds the rates applied to every invoice of a run.
type PricingConfig struct {
	// TaxPercent is applied to the subtotal.
	// Default: 10
	TaxPercent float64 `mapstructure:"tax_percent"`

	// DiscountPercent is applied to subtotal + tax + shipping when that
	// amount reaches MinDiscountAmount.
	// Default: 5
	DiscountPercent float64 `mapstructure:"discount_percent"`

	// MinDiscountAmount is the inclusive discount threshold.
	// Default: 2000
	MinDiscountAmount float64 `mapstructure:"min_discount_amount"`

	// NegativeLines is "allow" or "reject".
	// Default: "reject"
	NegativeLines string `mapstructure:"negative_lines"`
}

// PathsConfig locates the input, template and outputs.
type PathsConfig struct {
	// Input is the spreadsheet (.xlsx, .xlsm or .csv).
	// Default: "invoice_details.xlsx"
	Input string `mapstructure:"input"`

	// Template is the invoice template document.
	// Default: "templates/invoice.yaml"
	Template string `mapstructure:"template"`

	// OutputDir receives rendered invoices and run logs.
	// Default: "invoices"
	OutputDir string `mapstructure:"output_dir"`

	// InputArchiveDir receives the input after a fully successful run.
	// Empty disables archival.
	InputArchiveDir string `mapstructure:"input_archive_dir"`

	// ArchiveTimestampSubdirs files archived inputs under yyyy/mm/dd.
	ArchiveTimestampSubdirs bool `mapstructure:"archive_timestamp_subdirs"`
}

// TemplateConfig controls rendering.
type TemplateConfig struct {
	// StrictItemsTable fails a render when the template has no
	// line-items table. When false the items are skipped with a warning.
	StrictItemsTable bool `mapstructure:"strict_items_table"`

	// DateFormat is a Go time layout.
	// Default: "02-01-2006"
	DateFormat string `mapstructure:"date_format"`

	// EmphasisSize is the minimum font size of the company name, client
	// name, invoice number and shipped-to fields.
	// Default: 14
	EmphasisSize float64 `mapstructure:"emphasis_size"`
}

// InputConfig controls spreadsheet reading.
type InputConfig struct {
	// Sheet is the worksheet name. Empty reads the first sheet.
	Sheet string `mapstructure:"sheet"`

	// Delimiter is the csv field separator ("," ";" "|" or "tab").
	// Default: ","
	Delimiter string `mapstructure:"delimiter"`

	// DateLayouts are extra Go time layouts tried for date cells.
	DateLayouts []string `mapstructure:"date_layouts"`
}

// SMTPConfig holds the mail endpoint and sender identity.
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Username is the sender account. Also read from GMAIL_ACCOUNT.
	Username string `mapstructure:"username"`

	// Password is the account secret. Also read from GMAIL_PASSWORD.
	Password string `mapstructure:"password"`

	// FromName is the display name in the subject and body. Empty uses
	// the company name.
	FromName string `mapstructure:"from_name"`

	DefaultRecipient string `mapstructure:"default_recipient"`
	Signature        string `mapstructure:"signature"`
}

// ProcessingConfig controls failure handling.
type ProcessingConfig struct {
	// ContinueOnError keeps processing the remaining invoices when one
	// fails to render or send.
	// Default: true
	ContinueOnError bool `mapstructure:"continue_on_error"`

	// OnMalformedRow is "abort" or "skip".
	// Default: "abort"
	OnMalformedRow string `mapstructure:"on_malformed_row"`

	// SendEmail mails every rendered invoice.
	// Default: true
	SendEmail bool `mapstructure:"send_email"`
}

// LogConfig controls the logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is json or console.
	Format string `mapstructure:"format"`

	// Caller adds the calling file and line to every entry.
	Caller bool `mapstructure:"caller"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration. Missing config and env files are not
// errors; the defaults apply.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("smtp.username", EnvPrefix+"_SMTP_USERNAME", "GMAIL_ACCOUNT"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}
	if err := v.BindEnv("smtp.password", EnvPrefix+"_SMTP_PASSWORD", "GMAIL_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults registers every key so environment overrides apply even
// when the config file omits it.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("company.name", "")
	v.SetDefault("company.address", "")
	v.SetDefault("company.contact", "")

	v.SetDefault("pricing.tax_percent", 10.0)
	v.SetDefault("pricing.discount_percent", 5.0)
	v.SetDefault("pricing.min_discount_amount", 2000.0)
	v.SetDefault("pricing.negative_lines", string(invoice.NegativeReject))

	v.SetDefault("paths.input", "invoice_details.xlsx")
	v.SetDefault("paths.template", "templates/invoice.yaml")
	v.SetDefault("paths.output_dir", "invoices")
	v.SetDefault("paths.input_archive_dir", "")
	v.SetDefault("paths.archive_timestamp_subdirs", false)

	v.SetDefault("template.strict_items_table", false)
	v.SetDefault("template.date_format", invoice.DefaultDateLayout)
	v.SetDefault("template.emphasis_size", 14.0)

	v.SetDefault("input.sheet", "")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.date_layouts", []string{})

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from_name", "")
	v.SetDefault("smtp.default_recipient", "")
	v.SetDefault("smtp.signature", "")

	v.SetDefault("processing.continue_on_error", true)
	v.SetDefault("processing.on_malformed_row", OnMalformedAbort)
	v.SetDefault("processing.send_email", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.caller", false)
}

func normalize(cfg *Config) {
	cfg.Pricing.NegativeLines = strings.ToLower(strings.TrimSpace(cfg.Pricing.NegativeLines))
	cfg.Processing.OnMalformedRow = strings.ToLower(strings.TrimSpace(cfg.Processing.OnMalformedRow))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.SMTP.Username = strings.TrimSpace(cfg.SMTP.Username)
	cfg.SMTP.DefaultRecipient = strings.TrimSpace(cfg.SMTP.DefaultRecipient)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Pricing.TaxPercent < 0 {
		return fmt.Errorf("pricing.tax_percent must not be negative, got %v", c.Pricing.TaxPercent)
	}
	if c.Pricing.DiscountPercent < 0 || c.Pricing.DiscountPercent > 100 {
		return fmt.Errorf("pricing.discount_percent must be between 0 and 100, got %v", c.Pricing.DiscountPercent)
	}
	if c.Pricing.MinDiscountAmount < 0 {
		return fmt.Errorf("pricing.min_discount_amount must not be negative, got %v", c.Pricing.MinDiscountAmount)
	}
	if _, err := invoice.ParseNegativePolicy(c.Pricing.NegativeLines); err != nil {
		return fmt.Errorf("pricing.negative_lines: %w", err)
	}

	if strings.TrimSpace(c.Paths.Input) == "" {
		return errors.New("paths.input is required")
	}
	if strings.TrimSpace(c.Paths.Template) == "" {
		return errors.New("paths.template is required")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir is required")
	}

	if c.Template.EmphasisSize < 0 {
		return fmt.Errorf("template.emphasis_size must not be negative, got %v", c.Template.EmphasisSize)
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be between 1 and 65535, got %d", c.SMTP.Port)
	}

	switch c.Processing.OnMalformedRow {
	case OnMalformedAbort, OnMalformedSkip:
	default:
		return fmt.Errorf("processing.on_malformed_row must be %q or %q, got %q",
			OnMalformedAbort, OnMalformedSkip, c.Processing.OnMalformedRow)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	return nil
}

// =============================================================================
// DOMAIN VIEWS
// =============================================================================

// PricingPolicy returns the configured pricing policy.
func (c *Config) PricingPolicy() invoice.PricingPolicy {
	negative, _ := invoice.ParseNegativePolicy(c.Pricing.NegativeLines)
	return invoice.NewPricingPolicy(
		c.Pricing.TaxPercent,
		c.Pricing.DiscountPercent,
		c.Pricing.MinDiscountAmount,
		negative,
	)
}

// CompanyProfile returns the issuing company.
func (c *Config) CompanyProfile() invoice.Company {
	return invoice.Company{
		Name:    c.Company.Name,
		Address: c.Company.Address,
		Contact: c.Company.Contact,
	}
}

// SenderName is the display name used in mails.
func (c *Config) SenderName() string {
	if c.SMTP.FromName != "" {
		return c.SMTP.FromName
	}
	return c.Company.Name
}
