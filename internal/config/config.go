// =============================================================================
// LDCC1 Processor - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the run configuration.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults (Default)
//   2. The YAML configuration file (config.yaml)
//   3. Environment variables prefixed with LDCC_ (e.g. LDCC_PROCESS_PAYMENTS)
//   4. Command line flags (applied by the cmd package)
//
// Currency options are written as display amounts ("£1,250.00") and parsed to
// pence by Validate, so a malformed amount is reported before any input is read.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LDCC_"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds all options recognised by the processor.
type Config struct {
	// =========================================================================
	// PROCEDURE SWITCHES
	// =========================================================================

	// ProcessPayments enables the payment preparer. The run halts after it so
	// a human can complete the eQ Banking step.
	ProcessPayments bool `yaml:"process_payments" env:"PROCESS_PAYMENTS"`

	// MonthlyReconciliation enables interest allocation and the monthly
	// document set.
	MonthlyReconciliation bool `yaml:"monthly_reconciliation" env:"MONTHLY_RECONCILIATION"`

	// StrictReconciliation turns a non-zero reconciliation difference into a
	// run failure instead of a flagged warning.
	StrictReconciliation bool `yaml:"strict_reconciliation" env:"STRICT_RECONCILIATION"`

	// AllowNegativeBalance permits account or client balances below zero.
	// Client balances are only checked for clients in opening_balances.
	AllowNegativeBalance bool `yaml:"allow_negative_balance" env:"ALLOW_NEGATIVE_BALANCE"`

	// AbortOnCancel aborts the run when a save prompt is cancelled. When
	// false the document is marked skipped and the run continues.
	AbortOnCancel bool `yaml:"abort_on_cancel" env:"ABORT_ON_CANCEL"`

	// =========================================================================
	// BALANCES
	// =========================================================================

	// StartingBalance is the week-1 opening balance of the client account.
	StartingBalance string `yaml:"starting_balance" env:"STARTING_BALANCE"`

	// OpeningBalances are per-client balances at the start of week 1.
	OpeningBalances map[string]string `yaml:"opening_balances"`

	// BankStatementFile is an optional CSV/Excel file with bank-reported
	// closing balances (date and balance columns).
	BankStatementFile string `yaml:"bank_statement_file" env:"BANK_STATEMENT_FILE"`

	// BankStatementSheet selects the worksheet of an Excel bank statement.
	// Defaults to the first; the input's sheet option does not apply.
	BankStatementSheet string `yaml:"bank_statement_sheet" env:"BANK_STATEMENT_SHEET"`

	// BankClosingBalance is a manually entered bank balance for the final
	// week of the input. It overrides the statement file for that week.
	BankClosingBalance string `yaml:"bank_closing_balance" env:"BANK_CLOSING_BALANCE"`

	// =========================================================================
	// MONTHLY INTEREST
	// =========================================================================

	// MonthlyInterest is the total interest credited by the bank for the month.
	MonthlyInterest string `yaml:"monthly_interest" env:"MONTHLY_INTEREST"`

	// InterestMonth selects the month ("2006-01"). Defaults to the month of
	// the last input record. Its last week must be the final week of the
	// input.
	InterestMonth string `yaml:"interest_month" env:"INTEREST_MONTH"`

	// MonthEndBankBalance is the bank balance after interest, used by the
	// monthly reconciliation.
	MonthEndBankBalance string `yaml:"month_end_bank_balance" env:"MONTH_END_BANK_BALANCE"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// Sheet selects the worksheet for Excel inputs. Defaults to the first.
	Sheet string `yaml:"sheet" env:"SHEET"`

	// FuzzyColumns enables substring matching of column names after exact
	// alias matching fails.
	FuzzyColumns bool `yaml:"fuzzy_columns" env:"FUZZY_COLUMNS"`

	// ColumnAliases extends the built-in header aliases per field
	// (client_id, date, benefit, credit, withdrawal, reference, client_name,
	// balance).
	ColumnAliases map[string][]string `yaml:"column_aliases"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where run folders are created.
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`

	// ProcessingDate fixes the run date ("2006-01-02"). Defaults to today.
	ProcessingDate string `yaml:"processing_date" env:"PROCESSING_DATE"`

	// EQAccountLabel is the account description printed in the eQ Banking
	// instructions.
	EQAccountLabel string `yaml:"eq_account_label" env:"EQ_ACCOUNT_LABEL"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// Parsed values, filled by Validate.
	parsed Parsed `yaml:"-"`
}

// Parsed holds the typed form of the currency and date options.
type Parsed struct {
	StartingBalance     types.Pence
	OpeningBalances     map[string]types.Pence
	BankClosingBalance  *types.Pence
	MonthlyInterest     types.Pence
	InterestMonth       *time.Time
	MonthEndBankBalance *types.Pence
	ProcessingDate      *time.Time
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FuzzyColumns:    true,
		AbortOnCancel:   false,
		StartingBalance: "0.00",
		OutputDir:       "./output",
		LogLevel:        "info",
		LogFormat:       "console",
		EQAccountLabel:  "Account ending 3032 (LD Client Account Business Reserve)",
	}
}

// Load reads the configuration file (if it exists), then applies environment
// overrides.
//
// PARAMETERS:
//   - configPath: path to the YAML file. A missing file is not an error; the
//     defaults are used instead.
//
// RETURNS:
//   - The merged configuration. Validate has not been called yet so that the
//     caller can apply flag overrides first.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks option values and parses currency and date options.
func (c *Config) Validate() error {
	var errs []error
	p := Parsed{OpeningBalances: make(map[string]types.Pence)}

	amount := func(name, value string) types.Pence {
		v, err := types.ParseAmount(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return v
	}
	optionalAmount := func(name, value string) *types.Pence {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		v := amount(name, value)
		return &v
	}

	p.StartingBalance = amount("starting_balance", c.StartingBalance)
	for client, value := range c.OpeningBalances {
		p.OpeningBalances[strings.TrimSpace(client)] = amount("opening_balances."+client, value)
	}
	p.BankClosingBalance = optionalAmount("bank_closing_balance", c.BankClosingBalance)
	p.MonthEndBankBalance = optionalAmount("month_end_bank_balance", c.MonthEndBankBalance)

	p.MonthlyInterest = amount("monthly_interest", c.MonthlyInterest)
	if p.MonthlyInterest < 0 {
		errs = append(errs, fmt.Errorf("monthly_interest: must not be negative"))
	}

	if c.InterestMonth != "" {
		m, err := time.Parse("2006-01", c.InterestMonth)
		if err != nil {
			errs = append(errs, fmt.Errorf("interest_month: expected YYYY-MM: %w", err))
		} else {
			p.InterestMonth = &m
		}
	}
	if c.ProcessingDate != "" {
		d, err := time.Parse(time.DateOnly, c.ProcessingDate)
		if err != nil {
			errs = append(errs, fmt.Errorf("processing_date: expected YYYY-MM-DD: %w", err))
		} else {
			p.ProcessingDate = &d
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output_dir: must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	c.parsed = p
	return nil
}

// Values returns the parsed option values. Only meaningful after Validate.
func (c *Config) Values() Parsed {
	return c.parsed
}
