package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/model"
)

// ClusterSpec holds the parameters of a CreateCluster request.
type ClusterSpec struct {
	Identifier         string
	NodeType           string
	NumberOfNodes      int32
	MasterUsername     string
	MasterPassword     string
	DatabaseName       string
	Port               int32
	PubliclyAccessible bool
	IAMRoles           []string
}

// Provisioner issues cluster creation requests.
type Provisioner struct {
	client RedshiftAPI
	logger zerolog.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(client RedshiftAPI, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		client: client,
		logger: logger.With().Str("component", "provisioner").Logger(),
	}
}

// Create issues a single CreateCluster request and returns the status
// Redshift reports immediately, typically "creating". It does not wait.
func (p *Provisioner) Create(ctx context.Context, spec ClusterSpec) (model.ClusterStatus, error) {
	if spec.Identifier == "" || spec.MasterUsername == "" || spec.MasterPassword == "" {
		return "", errors.New("cluster identifier, master username and master password are required")
	}

	input := &redshift.CreateClusterInput{
		ClusterIdentifier:  aws.String(spec.Identifier),
		NodeType:           aws.String(spec.NodeType),
		MasterUsername:     aws.String(spec.MasterUsername),
		MasterUserPassword: aws.String(spec.MasterPassword),
		PubliclyAccessible: aws.Bool(spec.PubliclyAccessible),
		IamRoles:           spec.IAMRoles,
	}
	if spec.NumberOfNodes > 1 {
		input.ClusterType = aws.String("multi-node")
		input.NumberOfNodes = aws.Int32(spec.NumberOfNodes)
	} else {
		input.ClusterType = aws.String("single-node")
	}
	if spec.DatabaseName != "" {
		input.DBName = aws.String(spec.DatabaseName)
	}
	if spec.Port != 0 {
		input.Port = aws.Int32(spec.Port)
	}

	p.logger.Info().
		Str("cluster", spec.Identifier).
		Str("node_type", spec.NodeType).
		Int32("nodes", spec.NumberOfNodes).
		Msg("creating redshift cluster")

	out, err := p.client.CreateCluster(ctx, input)
	if err != nil {
		var exists *rstypes.ClusterAlreadyExistsFault
		if errors.As(err, &exists) {
			return "", fmt.Errorf("create cluster %s: %w: %w", spec.Identifier, ErrClusterExists, err)
		}
		return "", fmt.Errorf("create cluster %s: %w", spec.Identifier, err)
	}
	if out.Cluster == nil {
		return "", fmt.Errorf("create cluster %s: empty response", spec.Identifier)
	}

	status := model.ClusterStatus(aws.ToString(out.Cluster.ClusterStatus))
	p.logger.Info().Str("cluster", spec.Identifier).Str("status", string(status)).Msg("cluster creation requested")
	return status, nil
}
