// Package cloud provides the AWS account provisioning provider.
//
// It converges the account-level resources the trading stack writes
// to: the DynamoDB log tables, the data bucket, the execution role
// and the security group. Creates racing a previous run are absorbed;
// an "already exists" answer from the API counts as converged.
package cloud

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// StepIDCredentials gates every cloud resource step.
const StepIDCredentials = "cloud:credentials:aws"

// StepIDTable returns the step ID for a DynamoDB table.
func StepIDTable(name string) string {
	return "cloud:dynamodb:" + name
}

// StepIDBucket returns the step ID for the data bucket.
func StepIDBucket(name string) string {
	return "cloud:s3:" + name
}

// StepIDRole returns the step ID for the execution role.
func StepIDRole(name string) string {
	return "cloud:iam:" + name
}

// StepIDSecurityGroup returns the step ID for the security group.
func StepIDSecurityGroup(name string) string {
	return "cloud:ec2:" + name
}

// Provider compiles cloud resource steps from the target's cloud
// settings.
type Provider struct {
	clients         *Clients
	credentialsPath string
	fs              ports.FileSystem
}

// NewProvider creates a new cloud provider.
func NewProvider(clients *Clients, fs ports.FileSystem) *Provider {
	return &Provider{
		clients:         clients,
		credentialsPath: ports.ExpandPath("~/.aws/credentials"),
		fs:              fs,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "cloud"
}

// Compile generates one step per configured resource, all gated on
// the credentials step. A target with no cloud resources compiles to
// nothing.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	cloud := t.Cloud()

	var resources []step.Step
	for _, table := range cloud.Tables {
		resources = append(resources, NewTableStep(table, p.clients.DynamoDB))
	}

	if cloud.DataBucket != "" {
		resources = append(resources, NewBucketStep(cloud.DataBucket, cloud.Region, p.clients.S3))
	}

	if cloud.ExecutionRole != "" {
		resources = append(resources, NewRoleStep(cloud.ExecutionRole, p.clients.IAM))
	}

	if cloud.SecurityGroup != "" {
		resources = append(resources, NewSecurityGroupStep(cloud.SecurityGroup, cloud.IngressPorts, cloud.StackName, p.clients.EC2))
	}

	if len(resources) == 0 {
		return nil, nil
	}

	steps := make([]step.Step, 0, len(resources)+1)
	steps = append(steps, NewCredentialsStep(cloud, p.credentialsPath, p.fs))

	return append(steps, resources...), nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
