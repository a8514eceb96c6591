package quota_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mehditeymorian/quota"
)

func TestParseBudgets(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantPrefix string
		want       map[quota.EventType]quota.Budget
		wantErr    error
	}{
		{
			name: "read and write",
			doc: `
prefix: rate_limiter
events:
  read:  {budget: 2, window: 1s}
  write: {budget: 5, window: 1500ms}
`,
			wantPrefix: "rate_limiter",
			want: map[quota.EventType]quota.Budget{
				"read":  {Limit: 2, Window: time.Second},
				"write": {Limit: 5, Window: 1500 * time.Millisecond},
			},
		},
		{
			name:    "empty document",
			doc:     "",
			wantErr: quota.ErrInvalidBudget,
		},
		{
			name:    "no events",
			doc:     "prefix: x\n",
			wantErr: quota.ErrInvalidBudget,
		},
		{
			name:    "zero window",
			doc:     "events:\n  read: {budget: 2, window: 0s}\n",
			wantErr: quota.ErrInvalidBudget,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, b, err := quota.ParseBudgets(strings.NewReader(tc.doc))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if f.Prefix != tc.wantPrefix {
				t.Fatalf("expected prefix %q, got %q", tc.wantPrefix, f.Prefix)
			}
			for et, want := range tc.want {
				got, err := b.Lookup(et)
				if err != nil || got != want {
					t.Fatalf("%s: expected %+v, got %+v err=%v", et, want, got, err)
				}
			}
		})
	}
}

func TestParseBudgets_RejectsMalformed(t *testing.T) {
	docs := map[string]string{
		"unknown field": "events:\n  read: {budget: 2, window: 1s, burst: 4}\n",
		"bad duration":  "events:\n  read: {budget: 2, window: soon}\n",
		"not a map":     "events: [read, write]\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, _, err := quota.ParseBudgets(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error for %q", doc)
			}
		})
	}
}

func TestLoadBudgets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.yaml")
	if err := os.WriteFile(path, []byte("events:\n  read: {budget: 2, window: 1s}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	f, b, err := quota.LoadBudgets(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if f.Prefix != "" || b.Len() != 1 {
		t.Fatalf("unexpected result prefix=%q len=%d", f.Prefix, b.Len())
	}

	if _, _, err := quota.LoadBudgets(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
