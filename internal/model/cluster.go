package model

// ClusterStatus is the provisioning state reported by Redshift for a cluster.
type ClusterStatus string

// Cluster status values reported by DescribeClusters.
const (
	ClusterStatusCreating            ClusterStatus = "creating"
	ClusterStatusAvailable           ClusterStatus = "available"
	ClusterStatusUnavailable         ClusterStatus = "unavailable"
	ClusterStatusModifying           ClusterStatus = "modifying"
	ClusterStatusRebooting           ClusterStatus = "rebooting"
	ClusterStatusResizing            ClusterStatus = "resizing"
	ClusterStatusDeleting            ClusterStatus = "deleting"
	ClusterStatusFinalSnapshot       ClusterStatus = "final-snapshot"
	ClusterStatusIncompatibleNetwork ClusterStatus = "incompatible-network"
	ClusterStatusStorageFull         ClusterStatus = "storage-full"
)

// IsAvailable reports whether the cluster accepts connections.
func (s ClusterStatus) IsAvailable() bool {
	return s == ClusterStatusAvailable
}

// IsUnavailable reports whether Redshift marked the cluster unavailable.
// Whether that is transient or fatal is left to the caller.
func (s ClusterStatus) IsUnavailable() bool {
	return s == ClusterStatusUnavailable
}

type ClusterEndpoint struct {
	Address string `json:"address"`
	Port    int32  `json:"port"`
}

type Cluster struct {
	Identifier         string           `json:"identifier"`
	NodeType           string           `json:"node_type"`
	NumberOfNodes      int32            `json:"number_of_nodes"`
	MasterUsername     string           `json:"master_username"`
	MasterPassword     string           `json:"-"`
	DatabaseName       string           `json:"database_name"`
	PubliclyAccessible bool             `json:"publicly_accessible"`
	IAMRoles           []string         `json:"iam_roles,omitempty"`
	Status             ClusterStatus    `json:"status"`
	Endpoint           *ClusterEndpoint `json:"endpoint,omitempty"`
}
