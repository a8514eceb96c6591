package quota

import (
	"fmt"
	"strings"
	"time"
)

// Budget is the allowance of one event type: at most Limit units per Window.
type Budget struct {
	Limit  int64         `yaml:"budget"`
	Window time.Duration `yaml:"window"`
}

func (b Budget) validate() error {
	if b.Limit <= 0 {
		return fmt.Errorf("%w: budget must be >= 1, got %d", ErrInvalidBudget, b.Limit)
	}
	if b.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidBudget, b.Window)
	}
	return nil
}

// Budgets maps event types to their budget. It is immutable once built.
type Budgets struct {
	entries map[EventType]Budget
}

// NewBudgets validates the table and copies it.
func NewBudgets(table map[EventType]Budget) (Budgets, error) {
	if len(table) == 0 {
		return Budgets{}, fmt.Errorf("%w: no event types configured", ErrInvalidBudget)
	}

	entries := make(map[EventType]Budget, len(table))
	for et, b := range table {
		if et == "" {
			return Budgets{}, fmt.Errorf("%w: empty event type", ErrInvalidBudget)
		}
		if strings.Contains(string(et), keySeparator) {
			return Budgets{}, fmt.Errorf("%w: event type %q contains %q", ErrInvalidBudget, string(et), keySeparator)
		}
		if err := b.validate(); err != nil {
			return Budgets{}, fmt.Errorf("event type %q: %w", string(et), err)
		}
		entries[et] = b
	}
	return Budgets{entries: entries}, nil
}

// MustBudgets is NewBudgets for static tables; it panics on invalid input.
func MustBudgets(table map[EventType]Budget) Budgets {
	b, err := NewBudgets(table)
	if err != nil {
		panic(err)
	}
	return b
}

// Lookup returns the budget for et, or a *ConfigurationError.
func (b Budgets) Lookup(et EventType) (Budget, error) {
	budget, ok := b.entries[et]
	if !ok {
		return Budget{}, &ConfigurationError{EventType: et}
	}
	return budget, nil
}

// EventTypes returns the configured event types in no particular order.
func (b Budgets) EventTypes() []EventType {
	out := make([]EventType, 0, len(b.entries))
	for et := range b.entries {
		out = append(out, et)
	}
	return out
}

func (b Budgets) Len() int {
	return len(b.entries)
}
