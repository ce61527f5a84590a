package model

// Load run status constants.
const (
	StatusPending      = "pending"
	StatusProvisioning = "provisioning"
	StatusWaiting      = "waiting"
	StatusLoading      = "loading"
	StatusActive       = "active"
	StatusFailed       = "failed"
)
