package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"

	"github.com/edvin/warehouse/internal/model"
)

// Describe fetches the current state of a cluster.
func Describe(ctx context.Context, client RedshiftAPI, identifier string) (*model.Cluster, error) {
	out, err := client.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(identifier),
	})
	if err != nil {
		var notFound *rstypes.ClusterNotFoundFault
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("describe cluster %s: %w", identifier, ErrClusterNotFound)
		}
		return nil, fmt.Errorf("describe cluster %s: %w", identifier, err)
	}
	if len(out.Clusters) == 0 {
		return nil, fmt.Errorf("describe cluster %s: %w", identifier, ErrClusterNotFound)
	}

	return clusterFromAPI(out.Clusters[0]), nil
}

// ResolveEndpoint returns the address and port of an existing cluster.
func ResolveEndpoint(ctx context.Context, client RedshiftAPI, identifier string) (model.ClusterEndpoint, error) {
	cluster, err := Describe(ctx, client, identifier)
	if err != nil {
		return model.ClusterEndpoint{}, err
	}
	if cluster.Endpoint == nil || cluster.Endpoint.Address == "" {
		return model.ClusterEndpoint{}, fmt.Errorf("cluster %s: %w", identifier, ErrEndpointUnset)
	}
	return *cluster.Endpoint, nil
}

// Connection builds the descriptor used for all warehouse SQL.
func Connection(endpoint model.ClusterEndpoint, driver, database, user, password string) model.ConnectionDescriptor {
	return model.ConnectionDescriptor{
		Driver:   driver,
		Host:     endpoint.Address,
		Port:     endpoint.Port,
		Database: database,
		User:     user,
		Password: password,
	}
}

func clusterFromAPI(c rstypes.Cluster) *model.Cluster {
	cluster := &model.Cluster{
		Identifier:         aws.ToString(c.ClusterIdentifier),
		NodeType:           aws.ToString(c.NodeType),
		NumberOfNodes:      aws.ToInt32(c.NumberOfNodes),
		MasterUsername:     aws.ToString(c.MasterUsername),
		DatabaseName:       aws.ToString(c.DBName),
		PubliclyAccessible: aws.ToBool(c.PubliclyAccessible),
		Status:             model.ClusterStatus(aws.ToString(c.ClusterStatus)),
	}
	for _, role := range c.IamRoles {
		cluster.IAMRoles = append(cluster.IAMRoles, aws.ToString(role.IamRoleArn))
	}
	if c.Endpoint != nil {
		cluster.Endpoint = &model.ClusterEndpoint{
			Address: aws.ToString(c.Endpoint.Address),
			Port:    aws.ToInt32(c.Endpoint.Port),
		}
	}
	return cluster
}
