package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes annotates the request's New Relic transaction with the
// caller and route, and reports handler errors. It must run after
// nrgin.Middleware and Authenticate; without a transaction it does nothing.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if userID := UserID(c); userID != "" {
			txn.AddAttribute("user_id", userID)
		}
		txn.AddAttribute("route", c.FullPath())

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
