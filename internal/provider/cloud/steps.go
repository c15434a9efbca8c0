package cloud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gopkg.in/ini.v1"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// assumeRolePolicy is the trust policy for the execution role. The
// stack's lambdas and EC2 instances both assume it.
const assumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": ["lambda.amazonaws.com", "ec2.amazonaws.com"]},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// CredentialsStep gates the cloud steps on usable AWS credentials.
// It cannot conjure keys, so its Apply fails with instructions; the
// resource steps behind it come out blocked instead of erroring one
// by one against the API.
type CredentialsStep struct {
	cloud           target.Cloud
	credentialsPath string
	id              step.StepID
	fs              ports.FileSystem
}

// NewCredentialsStep creates a step that verifies credentials exist.
func NewCredentialsStep(cloud target.Cloud, credentialsPath string, fs ports.FileSystem) *CredentialsStep {
	return &CredentialsStep{
		cloud:           cloud,
		credentialsPath: credentialsPath,
		id:              step.MustNewStepID(StepIDCredentials),
		fs:              fs,
	}
}

// ID returns the step identifier.
func (s *CredentialsStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *CredentialsStep) DependsOn() []step.StepID {
	return nil
}

// Criticality returns how failures of this step are treated.
func (s *CredentialsStep) Criticality() step.Criticality {
	return step.Fatal
}

func (s *CredentialsStep) profileSection() string {
	if s.cloud.Profile != "" {
		return s.cloud.Profile
	}

	return "default"
}

// Check verifies static keys in the target or a usable profile
// section in the shared credentials file.
func (s *CredentialsStep) Check(_ step.RunContext) (step.Status, error) {
	if s.cloud.AccessKeyID != "" && !s.cloud.SecretAccessKey.IsZero() {
		return step.StatusSatisfied, nil
	}

	data, err := s.fs.ReadFile(s.credentialsPath)
	if err != nil {
		return step.StatusNeedsApply, nil //nolint:nilerr // intentional: missing file = needs apply
	}

	cfg, err := ini.Load(data)
	if err != nil {
		return step.StatusNeedsApply, nil //nolint:nilerr // intentional: unparseable file = needs apply
	}

	section, err := cfg.GetSection(s.profileSection())
	if err != nil {
		return step.StatusNeedsApply, nil //nolint:nilerr // intentional: missing section = needs apply
	}

	if section.HasKey("aws_access_key_id") && section.HasKey("aws_secret_access_key") {
		return step.StatusSatisfied, nil
	}

	return step.StatusNeedsApply, nil
}

// Plan describes what Apply would do.
func (s *CredentialsStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, _ := s.Check(ctx)
	if status == step.StatusSatisfied {
		return step.NewDiff(step.DiffTypeNone, "credentials", s.profileSection(), "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "credentials", s.profileSection(), "", "aws_access_key_id, aws_secret_access_key"), nil
}

// Apply cannot create credentials; it reports how to supply them.
func (s *CredentialsStep) Apply(_ step.RunContext) error {
	profile := s.profileSection()

	return fmt.Errorf("no AWS credentials for profile %q: run 'aws configure --profile %s' or set cloud.access_key_id in the target file", profile, profile)
}

// Explain provides a human-readable explanation.
func (s *CredentialsStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Verify AWS credentials",
		fmt.Sprintf("Checks for static keys or a %q section in %s.", s.profileSection(), s.credentialsPath),
	)
}

// TableStep ensures a DynamoDB table exists with the expected key
// schema. Tables are created on demand billing.
type TableStep struct {
	table target.Table
	id    step.StepID
	api   DynamoDBAPI
}

// NewTableStep creates a step that ensures one table.
func NewTableStep(table target.Table, api DynamoDBAPI) *TableStep {
	return &TableStep{
		table: table,
		id:    step.MustNewStepID(StepIDTable(table.Name)),
		api:   api,
	}
}

// ID returns the step identifier.
func (s *TableStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *TableStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDCredentials)}
}

// Criticality returns how failures of this step are treated.
func (s *TableStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies the table exists.
func (s *TableStep) Check(ctx step.RunContext) (step.Status, error) {
	_, err := s.api.DescribeTable(ctx.Context(), &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table.Name),
	})
	if err != nil {
		if notFound(err) {
			return step.StatusNeedsApply, nil
		}

		return step.StatusUnknown, fmt.Errorf("failed to describe table %s: %w", s.table.Name, err)
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *TableStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, err := s.Check(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "table", s.table.Name, "", s.keySchema()), nil
	}

	if status == step.StatusSatisfied {
		return step.NewDiff(step.DiffTypeNone, "table", s.table.Name, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "table", s.table.Name, "", s.keySchema()), nil
}

// Apply creates the table.
func (s *TableStep) Apply(ctx step.RunContext) error {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(s.table.Name),
		BillingMode: ddbtypes.BillingModePayPerRequest,
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String(s.table.PartitionKey), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String(s.table.PartitionKey), KeyType: ddbtypes.KeyTypeHash},
		},
	}

	if s.table.SortKey != "" {
		input.AttributeDefinitions = append(input.AttributeDefinitions, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(s.table.SortKey),
			AttributeType: ddbtypes.ScalarAttributeTypeS,
		})
		input.KeySchema = append(input.KeySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(s.table.SortKey),
			KeyType:       ddbtypes.KeyTypeRange,
		})
	}

	if _, err := s.api.CreateTable(ctx.Context(), input); err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create table %s: %w", s.table.Name, err)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *TableStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure DynamoDB table "+s.table.Name,
		fmt.Sprintf("Creates the table keyed on %s if it does not exist.", s.keySchema()),
	)
}

func (s *TableStep) keySchema() string {
	if s.table.SortKey != "" {
		return s.table.PartitionKey + " / " + s.table.SortKey
	}

	return s.table.PartitionKey
}

// BucketStep ensures the data bucket exists.
type BucketStep struct {
	bucket string
	region string
	id     step.StepID
	api    S3API
}

// NewBucketStep creates a step that ensures the bucket.
func NewBucketStep(bucket, region string, api S3API) *BucketStep {
	return &BucketStep{
		bucket: bucket,
		region: region,
		id:     step.MustNewStepID(StepIDBucket(bucket)),
		api:    api,
	}
}

// ID returns the step identifier.
func (s *BucketStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *BucketStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDCredentials)}
}

// Criticality returns how failures of this step are treated.
func (s *BucketStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies the bucket exists and is reachable.
func (s *BucketStep) Check(ctx step.RunContext) (step.Status, error) {
	_, err := s.api.HeadBucket(ctx.Context(), &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		if notFound(err) {
			return step.StatusNeedsApply, nil
		}

		return step.StatusUnknown, fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *BucketStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, err := s.Check(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "bucket", s.bucket, "", s.region), nil
	}

	if status == step.StatusSatisfied {
		return step.NewDiff(step.DiffTypeNone, "bucket", s.bucket, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "bucket", s.bucket, "", s.region), nil
}

// Apply creates the bucket in the target region.
func (s *BucketStep) Apply(ctx step.RunContext) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}

	// us-east-1 rejects an explicit location constraint.
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.api.CreateBucket(ctx.Context(), input); err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *BucketStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure S3 bucket "+s.bucket,
		fmt.Sprintf("Creates the data bucket in %s if it does not exist.", s.region),
	)
}

// RoleStep ensures the execution role exists.
type RoleStep struct {
	role string
	id   step.StepID
	api  IAMAPI
}

// NewRoleStep creates a step that ensures the execution role.
func NewRoleStep(role string, api IAMAPI) *RoleStep {
	return &RoleStep{
		role: role,
		id:   step.MustNewStepID(StepIDRole(role)),
		api:  api,
	}
}

// ID returns the step identifier.
func (s *RoleStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *RoleStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDCredentials)}
}

// Criticality returns how failures of this step are treated.
func (s *RoleStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies the role exists.
func (s *RoleStep) Check(ctx step.RunContext) (step.Status, error) {
	_, err := s.api.GetRole(ctx.Context(), &iam.GetRoleInput{
		RoleName: aws.String(s.role),
	})
	if err != nil {
		if notFound(err) {
			return step.StatusNeedsApply, nil
		}

		return step.StatusUnknown, fmt.Errorf("failed to get role %s: %w", s.role, err)
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *RoleStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, err := s.Check(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "role", s.role, "", "lambda, ec2 trust"), nil
	}

	if status == step.StatusSatisfied {
		return step.NewDiff(step.DiffTypeNone, "role", s.role, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "role", s.role, "", "lambda, ec2 trust"), nil
}

// Apply creates the role with the execution trust policy.
func (s *RoleStep) Apply(ctx step.RunContext) error {
	_, err := s.api.CreateRole(ctx.Context(), &iam.CreateRoleInput{
		RoleName:                 aws.String(s.role),
		AssumeRolePolicyDocument: aws.String(assumeRolePolicy),
		Description:              aws.String("Execution role for the Cryonith trading stack"),
	})
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create role %s: %w", s.role, err)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *RoleStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure IAM role "+s.role,
		"Creates the execution role trusted by lambda and EC2 if it does not exist.",
	)
}

// SecurityGroupStep ensures the security group exists with the
// expected ingress ports open.
type SecurityGroupStep struct {
	name  string
	stack string
	ports []int
	id    step.StepID
	api   EC2API
}

// NewSecurityGroupStep creates a step that ensures the security group.
func NewSecurityGroupStep(name string, ingressPorts []int, stack string, api EC2API) *SecurityGroupStep {
	return &SecurityGroupStep{
		name:  name,
		stack: stack,
		ports: ingressPorts,
		id:    step.MustNewStepID(StepIDSecurityGroup(name)),
		api:   api,
	}
}

// ID returns the step identifier.
func (s *SecurityGroupStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *SecurityGroupStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDCredentials)}
}

// Criticality returns how failures of this step are treated.
func (s *SecurityGroupStep) Criticality() step.Criticality {
	return step.BestEffort
}

// find returns the group, or nil when it does not exist.
func (s *SecurityGroupStep) find(ctx step.RunContext) (*ec2types.SecurityGroup, error) {
	out, err := s.api.DescribeSecurityGroups(ctx.Context(), &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{s.name}},
		},
	})
	if err != nil {
		if notFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to describe security group %s: %w", s.name, err)
	}

	if len(out.SecurityGroups) == 0 {
		return nil, nil
	}

	return &out.SecurityGroups[0], nil
}

// missingPorts returns the wanted ports the group does not open yet.
func (s *SecurityGroupStep) missingPorts(group *ec2types.SecurityGroup) []int {
	open := make(map[int32]bool)
	for _, perm := range group.IpPermissions {
		if perm.FromPort != nil {
			open[*perm.FromPort] = true
		}
	}

	var missing []int
	for _, port := range s.ports {
		if !open[int32(port)] {
			missing = append(missing, port)
		}
	}

	return missing
}

// Check verifies the group exists and every ingress port is open.
func (s *SecurityGroupStep) Check(ctx step.RunContext) (step.Status, error) {
	group, err := s.find(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}

	if group == nil {
		return step.StatusNeedsApply, nil
	}

	if len(s.missingPorts(group)) > 0 {
		return step.StatusNeedsApply, nil
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *SecurityGroupStep) Plan(ctx step.RunContext) (step.Diff, error) {
	group, err := s.find(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "security-group", s.name, "", "ingress "+joinPorts(s.ports)), nil
	}

	if group == nil {
		return step.NewDiff(step.DiffTypeAdd, "security-group", s.name, "", "ingress "+joinPorts(s.ports)), nil
	}

	missing := s.missingPorts(group)
	if len(missing) == 0 {
		return step.NewDiff(step.DiffTypeNone, "security-group", s.name, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeModify, "security-group", s.name, "missing ports "+joinPorts(missing), "ingress "+joinPorts(s.ports)), nil
}

// Apply creates the group if needed and authorizes each ingress port.
func (s *SecurityGroupStep) Apply(ctx step.RunContext) error {
	groupID, err := s.ensureGroup(ctx)
	if err != nil {
		return err
	}

	for _, port := range s.ports {
		_, err := s.api.AuthorizeSecurityGroupIngress(ctx.Context(), &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId: aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{
				{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int32(int32(port)),
					ToPort:     aws.Int32(int32(port)),
					IpRanges: []ec2types.IpRange{
						{CidrIp: aws.String("0.0.0.0/0")},
					},
				},
			},
		})
		if err != nil && !alreadyExists(err) {
			return fmt.Errorf("failed to authorize port %d on %s: %w", port, s.name, err)
		}
	}

	return nil
}

// ensureGroup creates the group, or looks up its ID when the create
// reports a duplicate.
func (s *SecurityGroupStep) ensureGroup(ctx step.RunContext) (string, error) {
	created, err := s.api.CreateSecurityGroup(ctx.Context(), &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(s.name),
		Description: aws.String(s.stack + " service ports"),
	})
	if err == nil {
		return aws.ToString(created.GroupId), nil
	}

	if !alreadyExists(err) {
		return "", fmt.Errorf("failed to create security group %s: %w", s.name, err)
	}

	group, err := s.find(ctx)
	if err != nil {
		return "", err
	}

	if group == nil {
		return "", fmt.Errorf("security group %s reported as duplicate but not found", s.name)
	}

	return aws.ToString(group.GroupId), nil
}

// Explain provides a human-readable explanation.
func (s *SecurityGroupStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure security group "+s.name,
		fmt.Sprintf("Creates the group and opens ingress on ports %s.", joinPorts(s.ports)),
	)
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, port := range ports {
		parts[i] = strconv.Itoa(port)
	}

	return strings.Join(parts, ", ")
}

// Ensure steps implement step.Step.
var (
	_ step.Step = (*CredentialsStep)(nil)
	_ step.Step = (*TableStep)(nil)
	_ step.Step = (*BucketStep)(nil)
	_ step.Step = (*RoleStep)(nil)
	_ step.Step = (*SecurityGroupStep)(nil)
)
