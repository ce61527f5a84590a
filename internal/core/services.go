package core

import temporalclient "go.temporal.io/sdk/client"

type Services struct {
	LoadRun *LoadRunService
	APIKey  *APIKeyService
}

func NewServices(db DB, tc temporalclient.Client, wait WaitOptions) *Services {
	return &Services{
		LoadRun: NewLoadRunService(db, tc, wait),
		APIKey:  NewAPIKeyService(db),
	}
}
