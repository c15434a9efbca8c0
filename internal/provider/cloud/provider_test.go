package cloud_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/provider/cloud"
	"github.com/cryonith/groundwork/internal/testutil/mocks"
)

func fakeClients() *cloud.Clients {
	return &cloud.Clients{
		DynamoDB: &fakeDynamo{},
		S3:       &fakeS3{},
		IAM:      &fakeIAM{},
		EC2:      &fakeEC2{},
	}
}

func awsDescriptor(t *testing.T) *target.Descriptor {
	t.Helper()

	d, err := target.New(target.ProfileAWS, target.Spec{
		Kind: "generic",
		Cloud: target.Cloud{
			Region:    "us-east-1",
			StackName: "cryonith-trading",
			Tables: []target.Table{
				{Name: "CryonithTradeLogs", PartitionKey: "TradeId", SortKey: "Timestamp"},
				{Name: "CryonithStrategyMetrics", PartitionKey: "StrategyId", SortKey: "Timestamp"},
				{Name: "CryonithMarketSignals", PartitionKey: "SignalId", SortKey: "Timestamp"},
				{Name: "CryonithPerformance", PartitionKey: "MetricType", SortKey: "Date"},
			},
			DataBucket:    "cryonith-trading-data",
			ExecutionRole: "cryonith-execution-role",
			SecurityGroup: "cryonith-trading-sg",
			IngressPorts:  []int{22, 80, 443, 8000},
		},
	})
	require.NoError(t, err)

	return d
}

func TestProvider_Name(t *testing.T) {
	t.Parallel()

	p := cloud.NewProvider(fakeClients(), mocks.NewFileSystem())

	assert.Equal(t, "cloud", p.Name())
}

func TestProvider_Compile_FullAccount(t *testing.T) {
	t.Parallel()

	p := cloud.NewProvider(fakeClients(), mocks.NewFileSystem())

	steps, err := p.Compile(awsDescriptor(t))

	require.NoError(t, err)
	require.Len(t, steps, 8)

	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID().String()
	}

	assert.Equal(t, []string{
		"cloud:credentials:aws",
		"cloud:dynamodb:CryonithTradeLogs",
		"cloud:dynamodb:CryonithStrategyMetrics",
		"cloud:dynamodb:CryonithMarketSignals",
		"cloud:dynamodb:CryonithPerformance",
		"cloud:s3:cryonith-trading-data",
		"cloud:iam:cryonith-execution-role",
		"cloud:ec2:cryonith-trading-sg",
	}, ids)
}

func TestProvider_Compile_ResourcesGatedOnCredentials(t *testing.T) {
	t.Parallel()

	p := cloud.NewProvider(fakeClients(), mocks.NewFileSystem())

	steps, err := p.Compile(awsDescriptor(t))

	require.NoError(t, err)
	for _, s := range steps[1:] {
		deps := s.DependsOn()
		require.Len(t, deps, 1, "step %s", s.ID())
		assert.Equal(t, cloud.StepIDCredentials, deps[0].String())
	}
}

func TestProvider_Compile_RegionOnly(t *testing.T) {
	t.Parallel()

	p := cloud.NewProvider(fakeClients(), mocks.NewFileSystem())

	d, err := target.New(target.ProfilePi, target.Spec{
		Kind:        "pi",
		Hostname:    "cryonith-pi.local",
		User:        "pi",
		InstallRoot: "/opt/cryonith",
		Cloud:       target.Cloud{Region: "us-east-1"},
	})
	require.NoError(t, err)

	steps, err := p.Compile(d)

	require.NoError(t, err)
	assert.Empty(t, steps)
}
