package sshkey

import (
	"fmt"
	"path/filepath"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
)

// DeployKeyStep ensures the deploy key pair exists. Best effort: a
// host without the key still provisions, it just cannot pull releases
// until the key is sorted out.
type DeployKeyStep struct {
	comment     string
	privatePath string
	publicPath  string
	id          step.StepID
	fs          ports.FileSystem
}

// NewDeployKeyStep creates a step that ensures the key pair at
// privatePath and privatePath + ".pub".
func NewDeployKeyStep(comment, privatePath string, fs ports.FileSystem) *DeployKeyStep {
	return &DeployKeyStep{
		comment:     comment,
		privatePath: privatePath,
		publicPath:  privatePath + ".pub",
		id:          step.MustNewStepID(StepIDDeployKey),
		fs:          fs,
	}
}

// ID returns the step identifier.
func (s *DeployKeyStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *DeployKeyStep) DependsOn() []step.StepID {
	return nil
}

// Criticality returns how failures of this step are treated.
func (s *DeployKeyStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies both halves of the key pair exist. Existence only;
// the content of a present private key is deliberately not inspected.
func (s *DeployKeyStep) Check(_ step.RunContext) (step.Status, error) {
	if !s.fs.Exists(s.privatePath) {
		return step.StatusNeedsApply, nil
	}

	if !s.fs.Exists(s.publicPath) {
		return step.StatusNeedsApply, nil
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *DeployKeyStep) Plan(_ step.RunContext) (step.Diff, error) {
	if !s.fs.Exists(s.privatePath) {
		return step.NewDiff(step.DiffTypeAdd, "sshkey", s.privatePath, "", "generated"), nil
	}

	if !s.fs.Exists(s.publicPath) {
		return step.NewDiff(step.DiffTypeAdd, "sshkey", s.publicPath, "", "derived from private key"), nil
	}

	return step.NewDiff(step.DiffTypeNone, "sshkey", s.privatePath, "", ""), nil
}

// Apply generates the key pair, or restores the public half from an
// existing private key. An existing private key may already be
// registered as a deploy key upstream, so it is never rewritten.
func (s *DeployKeyStep) Apply(_ step.RunContext) error {
	sshDir := filepath.Dir(s.privatePath)
	if !s.fs.Exists(sshDir) {
		if err := s.fs.MkdirAll(sshDir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", sshDir, err)
		}
	}

	if s.fs.Exists(s.privatePath) {
		privatePEM, err := s.fs.ReadFile(s.privatePath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.privatePath, err)
		}

		public, err := DerivePublicKey(privatePEM)
		if err != nil {
			return fmt.Errorf("existing key at %s is unreadable, move it aside and rerun: %w", s.privatePath, err)
		}

		if err := s.fs.WriteFile(s.publicPath, public, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.publicPath, err)
		}

		return nil
	}

	pair, err := GenerateKeyPair(s.comment)
	if err != nil {
		return err
	}

	if err := s.fs.WriteFile(s.privatePath, pair.PrivateKey, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.privatePath, err)
	}

	if err := s.fs.WriteFile(s.publicPath, pair.PublicKey, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.publicPath, err)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *DeployKeyStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure deploy key",
		fmt.Sprintf("Generates an ed25519 key pair at %s for pulling releases. An existing private key is kept as is.", s.privatePath),
	)
}

// Ensure DeployKeyStep implements step.Step.
var _ step.Step = (*DeployKeyStep)(nil)
