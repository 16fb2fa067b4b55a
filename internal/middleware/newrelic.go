package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the request's New Relic transaction with the
// authenticated caller. It runs after Auth; without a transaction it does nothing.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			txn.AddAttribute("user_id", UserID(c))
			txn.AddAttribute("role", string(Role(c)))
			if deviceID := DeviceID(c); deviceID != "" {
				txn.AddAttribute("device_id", deviceID)
			}
		}
		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
