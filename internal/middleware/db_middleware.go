package middleware

import (
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/worker"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func ServicesMiddleware(svc *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("services", svc)
		c.Next()
	}
}

func GetServices(c *gin.Context) *services.Services {
	svc, exists := c.Get("services")
	if !exists {
		return nil
	}
	return svc.(*services.Services)
}

// EnqueuerMiddleware exposes the task queue client. enqueuer may be nil when
// no Redis is configured; handlers fall back to running work inline.
func EnqueuerMiddleware(enqueuer worker.Enqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enqueuer != nil {
			c.Set("enqueuer", enqueuer)
		}
		c.Next()
	}
}

func GetEnqueuer(c *gin.Context) worker.Enqueuer {
	enqueuer, exists := c.Get("enqueuer")
	if !exists {
		return nil
	}
	return enqueuer.(worker.Enqueuer)
}
