package step

import (
	"testing"
)

func TestDiff_Creation(t *testing.T) {
	diff := NewDiff(DiffTypeAdd, "package", "nginx", "", "installed")

	if diff.Type() != DiffTypeAdd {
		t.Errorf("Diff.Type() = %v, want %v", diff.Type(), DiffTypeAdd)
	}
	if diff.Resource() != "package" {
		t.Errorf("Diff.Resource() = %q, want %q", diff.Resource(), "package")
	}
	if diff.Name() != "nginx" {
		t.Errorf("Diff.Name() = %q, want %q", diff.Name(), "nginx")
	}
	if diff.OldValue() != "" {
		t.Errorf("Diff.OldValue() = %q, want %q", diff.OldValue(), "")
	}
	if diff.NewValue() != "installed" {
		t.Errorf("Diff.NewValue() = %q, want %q", diff.NewValue(), "installed")
	}
}

func TestDiff_Types(t *testing.T) {
	tests := []struct {
		diffType DiffType
		expected string
	}{
		{DiffTypeAdd, "add"},
		{DiffTypeRemove, "remove"},
		{DiffTypeModify, "modify"},
		{DiffTypeNone, "none"},
	}

	for _, tt := range tests {
		if tt.diffType.String() != tt.expected {
			t.Errorf("DiffType.String() = %q, want %q", tt.diffType.String(), tt.expected)
		}
	}
}

func TestDiff_Summary(t *testing.T) {
	tests := []struct {
		name     string
		diff     Diff
		expected string
	}{
		{
			name:     "add table",
			diff:     NewDiff(DiffTypeAdd, "table", "CryonithTradeLogs", "", "created"),
			expected: "+ table CryonithTradeLogs (created)",
		},
		{
			name:     "remove file",
			diff:     NewDiff(DiffTypeRemove, "file", "/etc/nginx/sites-enabled/default", "present", ""),
			expected: "- file /etc/nginx/sites-enabled/default (present)",
		},
		{
			name:     "modify config",
			diff:     NewDiff(DiffTypeModify, "config", "nginx/cryonith", "stale", "rendered"),
			expected: "~ config nginx/cryonith",
		},
		{
			name:     "no change",
			diff:     NewDiff(DiffTypeNone, "service", "cryonith-agent", "", ""),
			expected: "  service cryonith-agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.diff.Summary(); got != tt.expected {
				t.Errorf("Summary() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDiff_IsEmpty(t *testing.T) {
	var zero Diff
	if !zero.IsEmpty() {
		t.Error("zero Diff should be empty")
	}

	diff := NewDiff(DiffTypeNone, "service", "cryonith-agent", "", "")
	if diff.IsEmpty() {
		t.Error("constructed Diff should not be empty")
	}
}

func TestExplanation_Creation(t *testing.T) {
	exp := NewExplanation(
		"Install missing system packages",
		"Installs only the packages dpkg-query reports as absent.",
	)

	if exp.Summary() != "Install missing system packages" {
		t.Errorf("Summary() = %q, want %q", exp.Summary(), "Install missing system packages")
	}
	if exp.Detail() != "Installs only the packages dpkg-query reports as absent." {
		t.Errorf("Detail() = %q", exp.Detail())
	}
}

func TestExplanation_Empty(t *testing.T) {
	var zero Explanation
	if !zero.IsEmpty() {
		t.Error("zero Explanation should be empty")
	}

	exp := NewExplanation("Summary", "")
	if exp.IsEmpty() {
		t.Error("Explanation with summary should not be empty")
	}
}
