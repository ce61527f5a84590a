// Package warehouse provisions Redshift clusters and waits for them to
// become available.
package warehouse

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
)

// RedshiftAPI is the subset of the Redshift client used by this package.
type RedshiftAPI interface {
	CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error)
	DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

var _ RedshiftAPI = (*redshift.Client)(nil)

// NewRedshiftClient returns a Redshift client for the given AWS config.
func NewRedshiftClient(cfg aws.Config) *redshift.Client {
	return redshift.NewFromConfig(cfg)
}
