package quota

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk budgets document:
//
//	prefix: quota
//	events:
//	  read:  {budget: 2, window: 1s}
//	  write: {budget: 5, window: 1s}
type File struct {
	Prefix string               `yaml:"prefix"`
	Events map[EventType]Budget `yaml:"events"`
}

// ParseBudgets decodes a budgets document. Unknown fields are rejected.
func ParseBudgets(r io.Reader) (File, Budgets, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, Budgets{}, fmt.Errorf("%w: empty budgets document", ErrInvalidBudget)
		}
		return File{}, Budgets{}, fmt.Errorf("failed to decode budgets: %w", err)
	}

	budgets, err := NewBudgets(f.Events)
	if err != nil {
		return File{}, Budgets{}, err
	}
	return f, budgets, nil
}

// LoadBudgets reads and parses the budgets file at path.
func LoadBudgets(path string) (File, Budgets, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, Budgets{}, fmt.Errorf("failed to open budgets file: %w", err)
	}
	defer fh.Close()

	f, b, err := ParseBudgets(fh)
	if err != nil {
		return File{}, Budgets{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, b, nil
}
