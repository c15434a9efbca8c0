package cloud_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/provider/cloud"
)

func TestNewClients_StaticKeys(t *testing.T) {
	t.Parallel()

	clients, err := cloud.NewClients(context.Background(), target.Cloud{
		Region:          "us-east-1",
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: target.NewSecret("secret"),
	})

	require.NoError(t, err)
	assert.NotNil(t, clients.DynamoDB)
	assert.NotNil(t, clients.S3)
	assert.NotNil(t, clients.IAM)
	assert.NotNil(t, clients.EC2)
}
