package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
)

// UUIDValidator проверяет, что параметры с указанными именами являются валидными UUID.
// Использование: group.GET("/transactions/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			raw := c.Param(name)
			if raw == "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "параметр " + name + " обязателен"})
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "параметр " + name + " должен быть валидным UUID"})
				return
			}
		}
		c.Next()
	}
}
