package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// errorBody — единый формат тела ошибки API.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor переводит таксономию доменных ошибок в HTTP статусы.
// Отказ провайдера выделен отдельно: это бизнес-исход, а не сбой шлюза.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrPaymentDeclined) {
		return http.StatusPaymentRequired
	}

	switch domain.Kind(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError пишет доменную ошибку в ответ. Детали internal-ошибок наружу не уходят.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	c.JSON(status, errorBody{Error: errorDetail{
		Code:    domain.Code(err),
		Message: message,
	}})
}
