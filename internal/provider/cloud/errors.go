package cloud

import (
	"errors"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// alreadyExists reports whether the API rejected a create because the
// resource is already there. A rerun racing its own earlier run treats
// that as converged, not failed.
func alreadyExists(err error) bool {
	var tableInUse *ddbtypes.ResourceInUseException
	if errors.As(err, &tableInUse) {
		return true
	}

	var bucketOwned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &bucketOwned) {
		return true
	}

	var roleExists *iamtypes.EntityAlreadyExistsException
	if errors.As(err, &roleExists) {
		return true
	}

	// EC2 has no typed duplicate errors; its codes only surface
	// through the generic API error.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceInUseException",
			"BucketAlreadyOwnedByYou",
			"BucketAlreadyExists",
			"EntityAlreadyExists",
			"InvalidGroup.Duplicate",
			"InvalidPermission.Duplicate":
			return true
		}
	}

	return false
}

// notFound reports whether a state query failed because the resource
// does not exist yet.
func notFound(err error) bool {
	var tableMissing *ddbtypes.ResourceNotFoundException
	if errors.As(err, &tableMissing) {
		return true
	}

	var bucketMissing *s3types.NotFound
	if errors.As(err, &bucketMissing) {
		return true
	}

	var roleMissing *iamtypes.NoSuchEntityException
	if errors.As(err, &roleMissing) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException",
			"NotFound",
			"NoSuchBucket",
			"NoSuchEntity",
			"InvalidGroup.NotFound",
			"404":
			return true
		}
	}

	return false
}
