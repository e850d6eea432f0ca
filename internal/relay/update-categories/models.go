package updatecategories

import (
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/tally"
)

type Input struct {
	Email      string              `json:"email"`
	Categories tally.InterestTally `json:"categories"`
}

type Output struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

type ServiceDependencies struct {
	CRM    hubspot.ContactAPI
	Buffer tally.Buffer
	Logger logger.Logger
}
