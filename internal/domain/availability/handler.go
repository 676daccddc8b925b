package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/platform/apierror"
	"vet-scheduling/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Put("/vets/me/availability", publishHandler(svc))
	r.Get("/vets/{vetID}/availability", getHandler(svc))
}

type entryDTO struct {
	Date  string   `json:"date"` // YYYY-MM-DD
	Slots []string `json:"slots"`
}

type exceptionDTO struct {
	Date        string   `json:"date"`
	IsAvailable bool     `json:"is_available"`
	Slots       []string `json:"slots"`
}

type publishRequest struct {
	Entries    []entryDTO     `json:"entries"`
	Exceptions []exceptionDTO `json:"exceptions"`
}

type availabilityResponse struct {
	VetID      string         `json:"vet_id"`
	Entries    []entryDTO     `json:"entries"`
	Exceptions []exceptionDTO `json:"exceptions"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// publishHandler godoc
// @Summary Publicar disponibilidad del vet
// @Description Reemplaza completa la disponibilidad del vet autenticado. Si alguna fecha es pasada, está repetida o no tiene slots, se rechaza todo. Requiere rol vet.
// @Tags availability
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param X-Debug-Role header string false "Solo en modo dev: user | vet"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body publishRequest true "Fechas YYYY-MM-DD con sus slots"
// @Success 200 {object} availabilityResponse
// @Failure 400 {object} apierror.Body
// @Failure 401 {object} apierror.Body
// @Failure 403 {object} apierror.Body
// @Router /vets/me/availability [put]
func publishHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.CallerWithRole(w, r, auth.RoleVet)
		if !ok {
			return
		}

		var req publishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierror.Write(w, apierror.KindValidation, "invalid json")
			return
		}

		in, err := req.toInput()
		if err != nil {
			apierror.Write(w, apierror.KindValidation, err.Error())
			return
		}

		a, err := svc.Publish(r.Context(), claims.UserID, in)
		if err != nil {
			writeError(w, err)
			return
		}

		apierror.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

// getHandler godoc
// @Summary Ver disponibilidad publicada de un vet
// @Tags availability
// @Produce json
// @Param vetID path string true "ID del vet"
// @Success 200 {object} availabilityResponse
// @Failure 404 {object} apierror.Body
// @Router /vets/{vetID}/availability [get]
func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.Caller(w, r); !ok {
			return
		}

		a, err := svc.Get(r.Context(), chi.URLParam(r, "vetID"))
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		apierror.Write(w, apierror.KindValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		apierror.Write(w, apierror.KindNotFound, "availability not found")
	default:
		apierror.Internal(w)
	}
}

func (req publishRequest) toInput() (PublishInput, error) {
	in := PublishInput{
		Entries:    make([]Entry, 0, len(req.Entries)),
		Exceptions: make([]Exception, 0, len(req.Exceptions)),
	}
	for _, e := range req.Entries {
		d, err := ParseDate(strings.TrimSpace(e.Date))
		if err != nil {
			return PublishInput{}, errors.New("date must be YYYY-MM-DD")
		}
		in.Entries = append(in.Entries, Entry{Date: d, Slots: e.Slots})
	}
	for _, ex := range req.Exceptions {
		d, err := ParseDate(strings.TrimSpace(ex.Date))
		if err != nil {
			return PublishInput{}, errors.New("exception date must be YYYY-MM-DD")
		}
		in.Exceptions = append(in.Exceptions, Exception{Date: d, IsAvailable: ex.IsAvailable, Slots: ex.Slots})
	}
	return in, nil
}

func toResponse(a Availability) availabilityResponse {
	out := availabilityResponse{
		VetID:      a.VetID,
		Entries:    make([]entryDTO, 0, len(a.Entries)),
		Exceptions: make([]exceptionDTO, 0, len(a.Exceptions)),
		UpdatedAt:  a.UpdatedAt,
	}
	for _, e := range a.Entries {
		out.Entries = append(out.Entries, entryDTO{Date: e.Date.Format(DateLayout), Slots: e.Slots})
	}
	for _, ex := range a.Exceptions {
		slots := ex.Slots
		if slots == nil {
			slots = []string{}
		}
		out.Exceptions = append(out.Exceptions, exceptionDTO{
			Date:        ex.Date.Format(DateLayout),
			IsAvailable: ex.IsAvailable,
			Slots:       slots,
		})
	}
	return out
}
