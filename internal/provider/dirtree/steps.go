package dirtree

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/validation"
)

// subdirNames are created under the install root on every host.
var subdirNames = []string{"config", "logs", "data"}

// TreeStep ensures the install tree exists and is owned by the
// provisioning user.
type TreeStep struct {
	root   string
	user   string
	id     step.StepID
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewTreeStep creates a new TreeStep rooted at root.
func NewTreeStep(root, user string, runner ports.CommandRunner, fs ports.FileSystem) *TreeStep {
	return &TreeStep{
		root:   root,
		user:   user,
		id:     step.MustNewStepID(StepIDTree),
		runner: runner,
		fs:     fs,
	}
}

// ID returns the step identifier.
func (s *TreeStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *TreeStep) DependsOn() []step.StepID {
	return nil
}

// Criticality returns how a failure affects the run. Config files and
// service working directories live in this tree.
func (s *TreeStep) Criticality() step.Criticality {
	return step.Fatal
}

// paths returns the full tree, root first.
func (s *TreeStep) paths() []string {
	paths := []string{s.root}
	for _, name := range subdirNames {
		paths = append(paths, filepath.Join(s.root, name))
	}
	return paths
}

func (s *TreeStep) expectedOwner() string {
	return s.user + ":" + s.user
}

// owner reports the user:group owning the install root.
func (s *TreeStep) owner(ctx step.RunContext) (string, error) {
	result, err := s.runner.Run(ctx.Context(), "stat", "-c", "%U:%G", s.root)
	if err != nil {
		return "", err
	}
	if !result.Success() {
		return "", fmt.Errorf("stat %s failed: %s", s.root, result.Stderr)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// Check determines if the tree exists with the right owner.
func (s *TreeStep) Check(ctx step.RunContext) (step.Status, error) {
	for _, path := range s.paths() {
		if !s.fs.IsDir(path) {
			return step.StatusNeedsApply, nil
		}
	}

	owner, err := s.owner(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}
	if owner != s.expectedOwner() {
		return step.StatusNeedsApply, nil
	}
	return step.StatusSatisfied, nil
}

// Plan returns the diff for this step.
func (s *TreeStep) Plan(ctx step.RunContext) (step.Diff, error) {
	var missing []string
	for _, path := range s.paths() {
		if !s.fs.IsDir(path) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return step.NewDiff(step.DiffTypeAdd, "directory", strings.Join(missing, " "), "", "owner "+s.expectedOwner()), nil
	}

	owner, err := s.owner(ctx)
	if err == nil && owner == s.expectedOwner() {
		return step.NewDiff(step.DiffTypeNone, "directory", s.root, "", ""), nil
	}
	if err != nil {
		// The state query failed; show the worst case.
		owner = "unknown"
	}
	return step.NewDiff(step.DiffTypeModify, "directory", s.root, owner, s.expectedOwner()), nil
}

// Apply creates missing directories and sets ownership on the whole
// tree. Chown runs recursively, so directories created earlier by root
// end up with the right owner too.
func (s *TreeStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateUsername(s.user); err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}
	if err := validation.ValidatePath(s.root); err != nil {
		return fmt.Errorf("invalid install root: %w", err)
	}

	for _, path := range s.paths() {
		if err := validation.ValidatePathWithBase(path, s.root); err != nil {
			return fmt.Errorf("invalid tree path: %w", err)
		}
		if err := s.fs.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}

	result, err := s.runner.Run(ctx.Context(), "sudo", "chown", "-R", s.expectedOwner(), s.root)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("chown %s failed: %s", s.root, result.Stderr)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *TreeStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create install directory tree",
		fmt.Sprintf("Ensures %s and its %s subdirectories exist, owned by %s.",
			s.root, strings.Join(subdirNames, ", "), s.user),
	)
}

// Ensure TreeStep implements step.Step.
var _ step.Step = (*TreeStep)(nil)
