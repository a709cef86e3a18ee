package httpadapter

import (
	"net/http"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPlanNotFound), domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyProcessed), domain.IsKind(err, domain.ErrIngestionInProgress):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrEmptyText):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
