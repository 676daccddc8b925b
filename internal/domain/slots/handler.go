package slots

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/platform/apierror"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/vets/{vetID}/slots", freeSlotsHandler(svc))
}

type daySlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// freeSlotsHandler godoc
// @Summary Slots libres de un vet
// @Description Días desde `from` (default hoy) con slots publicados que no tienen un turno vivo.
// @Tags slots
// @Produce json
// @Param vetID path string true "ID del vet"
// @Param from query string false "YYYY-MM-DD"
// @Success 200 {array} daySlotsResponse
// @Failure 404 {object} apierror.Body "el vet no publicó disponibilidad"
// @Router /vets/{vetID}/slots [get]
func freeSlotsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.Caller(w, r); !ok {
			return
		}

		var from time.Time
		if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
			d, err := availability.ParseDate(v)
			if err != nil {
				apierror.Write(w, apierror.KindValidation, "from must be YYYY-MM-DD")
				return
			}
			from = d
		}

		days, err := svc.FreeSlots(r.Context(), chi.URLParam(r, "vetID"), from)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				apierror.Write(w, apierror.KindValidation, "vet id required")
			case errors.Is(err, ErrNotFound):
				apierror.Write(w, apierror.KindNotFound, "vet has no published availability")
			default:
				apierror.Internal(w)
			}
			return
		}

		out := make([]daySlotsResponse, 0, len(days))
		for _, d := range days {
			out = append(out, daySlotsResponse{Date: d.Date.Format(availability.DateLayout), Slots: d.Slots})
		}
		apierror.WriteJSON(w, http.StatusOK, out)
	}
}
