package configfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/validation"
)

// RenderedFile describes one artifact a RenderedFileStep maintains.
type RenderedFile struct {
	ID      string
	Path    string
	Content []byte
	Mode    os.FileMode
	// Reload names a systemd service to poke after a write, for
	// daemons that only read config at startup or reload.
	Reload    string
	DependsOn []string
}

// RenderedFileStep keeps one file equal to its rendered content.
type RenderedFileStep struct {
	file   RenderedFile
	id     step.StepID
	deps   []step.StepID
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewRenderedFileStep creates a step for one rendered artifact.
func NewRenderedFileStep(file RenderedFile, runner ports.CommandRunner, fs ports.FileSystem) *RenderedFileStep {
	deps := make([]step.StepID, 0, len(file.DependsOn))
	for _, dep := range file.DependsOn {
		deps = append(deps, step.MustNewStepID(dep))
	}
	return &RenderedFileStep{
		file:   file,
		id:     step.MustNewStepID(file.ID),
		deps:   deps,
		runner: runner,
		fs:     fs,
	}
}

// ID returns the step identifier.
func (s *RenderedFileStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *RenderedFileStep) DependsOn() []step.StepID {
	return s.deps
}

// Criticality returns how a failure affects the run. Services cannot
// start without their config, so these are fatal.
func (s *RenderedFileStep) Criticality() step.Criticality {
	return step.Fatal
}

// contentHash returns the hex sha256 of the rendered content, the same
// encoding ports.FileSystem.FileHash uses for on-disk files.
func (s *RenderedFileStep) contentHash() string {
	sum := sha256.Sum256(s.file.Content)
	return hex.EncodeToString(sum[:])
}

// Check compares the on-disk file against the rendered content. Both
// the content hash and the permission bits must match; a secrets file
// that drifted to a readable mode counts as drift even when the bytes
// are identical.
func (s *RenderedFileStep) Check(_ step.RunContext) (step.Status, error) {
	if !s.fs.Exists(s.file.Path) {
		return step.StatusNeedsApply, nil
	}

	hash, err := s.fs.FileHash(s.file.Path)
	if err != nil {
		return step.StatusUnknown, err
	}
	if hash != s.contentHash() {
		return step.StatusNeedsApply, nil
	}

	info, err := s.fs.GetFileInfo(s.file.Path)
	if err != nil {
		return step.StatusUnknown, err
	}
	if info.Mode.Perm() != s.file.Mode.Perm() {
		return step.StatusNeedsApply, nil
	}
	return step.StatusSatisfied, nil
}

// Plan returns the diff for this step.
func (s *RenderedFileStep) Plan(_ step.RunContext) (step.Diff, error) {
	if !s.fs.Exists(s.file.Path) {
		return step.NewDiff(step.DiffTypeAdd, "file", s.file.Path, "", fmt.Sprintf("%d bytes, mode %04o", len(s.file.Content), s.file.Mode)), nil
	}

	hash, err := s.fs.FileHash(s.file.Path)
	if err != nil {
		// The state query failed; show the worst case.
		hash = "unknown"
	}
	if hash == s.contentHash() {
		if info, infoErr := s.fs.GetFileInfo(s.file.Path); infoErr == nil && info.Mode.Perm() != s.file.Mode.Perm() {
			return step.NewDiff(step.DiffTypeModify, "file", s.file.Path,
				fmt.Sprintf("mode %04o", info.Mode.Perm()),
				fmt.Sprintf("mode %04o", s.file.Mode.Perm())), nil
		}
		return step.NewDiff(step.DiffTypeNone, "file", s.file.Path, "", ""), nil
	}
	return step.NewDiff(step.DiffTypeModify, "file", s.file.Path, shortHash(hash), shortHash(s.contentHash())), nil
}

// Apply replaces the file atomically and pokes the owning service if
// one is configured. The reload only ever runs after a content change;
// an unchanged file is skipped before Apply is reached.
func (s *RenderedFileStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidatePath(s.file.Path); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	if err := s.fs.WriteFileAtomic(s.file.Path, s.file.Content, s.file.Mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file.Path, err)
	}

	return reloadService(ctx, s.runner, s.file.Reload)
}

// Explain provides a human-readable explanation.
func (s *RenderedFileStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Write "+filepath.Base(s.file.Path),
		fmt.Sprintf("Renders %s and replaces it atomically when the content differs from what is on disk.", s.file.Path),
	)
}

// RemoveFileStep keeps one file absent.
type RemoveFileStep struct {
	path   string
	reload string
	id     step.StepID
	deps   []step.StepID
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewRemoveFileStep creates a step that removes path if present.
func NewRemoveFileStep(id, path, reload string, dependsOn []string, runner ports.CommandRunner, fs ports.FileSystem) *RemoveFileStep {
	deps := make([]step.StepID, 0, len(dependsOn))
	for _, dep := range dependsOn {
		deps = append(deps, step.MustNewStepID(dep))
	}
	return &RemoveFileStep{
		path:   path,
		reload: reload,
		id:     step.MustNewStepID(id),
		deps:   deps,
		runner: runner,
		fs:     fs,
	}
}

// ID returns the step identifier.
func (s *RemoveFileStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *RemoveFileStep) DependsOn() []step.StepID {
	return s.deps
}

// Criticality returns how a failure affects the run. A leftover default
// site only shadows unmatched hosts, so this is best effort.
func (s *RemoveFileStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check determines if the file is already absent.
func (s *RemoveFileStep) Check(_ step.RunContext) (step.Status, error) {
	if s.fs.Exists(s.path) {
		return step.StatusNeedsApply, nil
	}
	return step.StatusSatisfied, nil
}

// Plan returns the diff for this step.
func (s *RemoveFileStep) Plan(_ step.RunContext) (step.Diff, error) {
	if !s.fs.Exists(s.path) {
		return step.NewDiff(step.DiffTypeNone, "file", s.path, "", ""), nil
	}
	return step.NewDiff(step.DiffTypeRemove, "file", s.path, "present", ""), nil
}

// Apply removes the file and pokes the owning service.
func (s *RemoveFileStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidatePath(s.path); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	if err := s.fs.Remove(s.path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}

	return reloadService(ctx, s.runner, s.reload)
}

// Explain provides a human-readable explanation.
func (s *RemoveFileStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Remove "+filepath.Base(s.path),
		fmt.Sprintf("Removes %s so it cannot shadow the rendered configuration.", s.path),
	)
}

// reloadService reload-or-restarts a systemd service. reload-or-restart
// covers both the running daemon and the not-yet-started one on a fresh
// host.
func reloadService(ctx step.RunContext, runner ports.CommandRunner, service string) error {
	if service == "" {
		return nil
	}
	if err := validation.ValidateServiceName(service); err != nil {
		return fmt.Errorf("invalid reload service: %w", err)
	}

	result, err := runner.Run(ctx.Context(), "sudo", "systemctl", "reload-or-restart", service)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("reload of %s failed: %s", service, result.Stderr)
	}
	return nil
}

// shortHash abbreviates a hex digest for diff output.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// Ensure steps implement step.Step.
var (
	_ step.Step = (*RenderedFileStep)(nil)
	_ step.Step = (*RemoveFileStep)(nil)
)
