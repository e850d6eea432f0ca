package trackview

import (
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/tally"
)

// Input is one page view: the visitor and the categories of the page.
type Input struct {
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

type Output struct {
	Status string              `json:"status"`
	Tally  tally.InterestTally `json:"tally"`
}

type ServiceDependencies struct {
	Buffer tally.Buffer
	Logger logger.Logger
}
