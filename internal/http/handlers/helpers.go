package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers/common"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// handleWithID общий путь для эндпоинтов вида /:id: актор, id, вызов сервиса, 200.
func handleWithID(c *gin.Context, fn func(models.Actor, uuid.UUID) (any, error)) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := fn(actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, result)
}

// handleWithBody разбирает тело до вызова сервиса, чтобы невалидный запрос не доходил до БД.
func handleWithBody(c *gin.Context, req any, fn func(models.Actor, uuid.UUID) (any, error)) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		if err := common.BindAndValidate(c, req); err != nil {
			return nil, err
		}
		return fn(actor, id)
	})
}
