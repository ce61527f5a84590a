package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML overlay read from WAREHOUSE_DEFINITION. Only fields
// present in the file override the environment.
type Definition struct {
	Cluster ClusterDef `yaml:"cluster"`
	Load    LoadDef    `yaml:"load"`
	Wait    WaitDef    `yaml:"wait"`
}

type ClusterDef struct {
	Identifier         string `yaml:"identifier"`
	NodeType           string `yaml:"node_type"`
	NodeCount          *int32 `yaml:"node_count"`
	PubliclyAccessible *bool  `yaml:"publicly_accessible"`
	Database           string `yaml:"database"`
	Port               *int32 `yaml:"port"`
	IAMRoleARN         string `yaml:"iam_role_arn"`
	ReuseExisting      *bool  `yaml:"reuse_existing"`
	Driver             string `yaml:"driver"`
}

type LoadDef struct {
	File         string `yaml:"file"`
	Bucket       string `yaml:"bucket"`
	Key          string `yaml:"key"`
	IgnoreHeader *int   `yaml:"ignore_header"`
	MaxErrors    *int   `yaml:"max_errors"`
}

type WaitDef struct {
	Delay       string `yaml:"delay"`
	MaxAttempts *int   `yaml:"max_attempts"`
}

// LoadDefinition reads and parses a YAML definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return &def, nil
}

func (c *Config) applyDefinition(path string) error {
	def, err := LoadDefinition(path)
	if err != nil {
		return err
	}

	overrideString(&c.ClusterIdentifier, def.Cluster.Identifier)
	overrideString(&c.NodeType, def.Cluster.NodeType)
	overrideString(&c.DatabaseName, def.Cluster.Database)
	overrideString(&c.IAMRoleARN, def.Cluster.IAMRoleARN)
	overrideString(&c.WarehouseDriver, def.Cluster.Driver)
	if def.Cluster.NodeCount != nil {
		c.NodeCount = *def.Cluster.NodeCount
	}
	if def.Cluster.Port != nil {
		c.Port = *def.Cluster.Port
	}
	if def.Cluster.PubliclyAccessible != nil {
		c.PubliclyAccessible = *def.Cluster.PubliclyAccessible
	}
	if def.Cluster.ReuseExisting != nil {
		c.ReuseExisting = *def.Cluster.ReuseExisting
	}

	if def.Load.File != "" {
		c.LoadFile = def.Load.File
		if def.Load.Key == "" {
			c.LoadKey = baseName(def.Load.File)
		}
	}
	overrideString(&c.LoadBucket, def.Load.Bucket)
	overrideString(&c.LoadKey, def.Load.Key)
	if def.Load.IgnoreHeader != nil {
		c.LoadIgnoreHeader = *def.Load.IgnoreHeader
	}
	if def.Load.MaxErrors != nil {
		c.LoadMaxErrors = *def.Load.MaxErrors
	}

	if def.Wait.Delay != "" {
		d, err := time.ParseDuration(def.Wait.Delay)
		if err != nil {
			return fmt.Errorf("parse wait.delay: %w", err)
		}
		c.WaitDelay = d
	}
	if def.Wait.MaxAttempts != nil {
		c.WaitMaxAttempts = *def.Wait.MaxAttempts
	}
	return nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
