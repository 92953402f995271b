package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/middleware"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

var (
	// ErrUserNotFound is returned when user is not found in context
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID is returned when UUID parsing fails
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentActor собирает models.Actor из значений, проставленных AuthMiddleware.
func CurrentActor(c *gin.Context) (models.Actor, error) {
	rawID, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return models.Actor{}, ErrUserNotFound
	}
	userID, ok := rawID.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return models.Actor{}, ErrUserNotFound
	}

	role := c.GetString(middleware.ContextRoleKey)
	if role == "" {
		return models.Actor{}, ErrUserNotFound
	}

	return models.Actor{ID: userID, Role: role}, nil
}

// RequireActor отвечает 401, если в контексте нет пользователя.
func RequireActor(c *gin.Context) (models.Actor, bool) {
	actor, err := CurrentActor(c)
	if err != nil {
		RespondUnauthorized(c, "")
		return models.Actor{}, false
	}
	return actor, true
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindAndValidate binds JSON request and returns properly formatted error
func BindAndValidate(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondAppError отдаёт ошибку сервиса с её HTTP статусом и кодом.
// Текст внутренних ошибок уходит только в лог.
func RespondAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := middleware.ErrorBody(err)
	if status >= http.StatusInternalServerError {
		logger.Component("http").WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// RespondSuccess sends a standardized success response
func RespondSuccess(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, dto.SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPage читает cursor и limit из query. Лимит нормализуется в допустимый диапазон.
func GetPage(c *gin.Context) models.PageRequest {
	return models.PageRequest{
		Cursor: c.Query("cursor"),
		Limit:  ParseIntQuery(c, "limit", models.DefaultPageLimit),
	}.Normalize()
}

// OptionalQuery возвращает указатель на параметр или nil, если он пуст.
// parse проверяет значение и отдаёт ошибку валидации.
func OptionalQuery[T any](c *gin.Context, key string, parse func(string) (T, error)) (*T, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
