package getcontact

import (
	"github.com/redis/go-redis/v9"

	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
)

// Properties requested from the CRM for the thank-you data.
var contactProperties = []string{"firstname", "lastname", "email"}

type Output struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

type ServiceDependencies struct {
	CRM    hubspot.ContactAPI
	Cache  redis.UniversalClient // optional
	Logger logger.Logger
}
