// Package riskconfig loads and validates the JSON configuration that
// parameterises one backtest sweep: starting value, income target,
// inflation, allocation weights, the withdrawal rail, and the cash buffer.
// Structural validation loads from libs/risk.LoadPolicy's file-or-defaults
// pattern; field validation is expressed with go-playground/validator
// struct tags.
package riskconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"glidepath/internal/ledger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the JSON-serialisable shape of one sweep's parameters.
type Config struct {
	StartingPortfolioValue float64            `json:"starting_portfolio_value" validate:"required,gt=0"`
	DesiredAnnualIncome    float64            `json:"desired_annual_income" validate:"required,gt=0"`
	Inflation              float64            `json:"inflation" validate:"required,gt=0"`
	MinIncomeMultiplier    float64            `json:"min_income_multiplier" validate:"gte=0,lte=1"`
	HorizonYears           int                `json:"simulation_length_years" validate:"required,gt=0"`
	MaxWithdrawalRate      float64            `json:"max_withdrawal_rate" validate:"required,gt=0,lte=1"`
	CashBufferYears        int                `json:"cash_buffer_years" validate:"gte=0"`
	Allocation             map[string]float64 `json:"portfolio_allocation" validate:"required,min=1"`
}

// Load reads path as JSON and validates it. An empty path is rejected: a
// sweep has no sensible built-in default allocation.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("%w: riskconfig: a config file path is required", ledger.ErrConfiguration)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: riskconfig: read %q: %v", ledger.ErrConfiguration, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: riskconfig: parse %q: %v", ledger.ErrConfiguration, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: riskconfig: invalid config in %q: %v", ledger.ErrConfiguration, path, err)
	}
	return cfg, nil
}

// Validate runs struct-tag validation plus the one check validator tags
// cannot express: every allocation key must name a known asset class.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for key, weight := range c.Allocation {
		if _, ok := ledger.ParseAsset(key); !ok {
			return fmt.Errorf("%w: unknown asset class %q in portfolio_allocation", ledger.ErrConfiguration, key)
		}
		if weight < 0 {
			return fmt.Errorf("%w: negative weight for asset class %q", ledger.ErrConfiguration, key)
		}
	}
	return nil
}

// ToAllocation converts the validated JSON map into a ledger.Allocation.
func (c Config) ToAllocation() (ledger.Allocation, error) {
	return ledger.NewAllocation(c.Allocation)
}
