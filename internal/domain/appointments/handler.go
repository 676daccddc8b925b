package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/platform/apierror"
	"vet-scheduling/internal/platform/pagination"
	"vet-scheduling/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes monta los endpoints de turnos. bookingLimiter (opcional)
// se aplica solo a las rutas que reservan.
func RegisterRoutes(r chi.Router, svc *Service, bookingLimiter func(http.Handler) http.Handler) {
	booking := r
	if bookingLimiter != nil {
		booking = r.With(bookingLimiter)
	}

	booking.Post("/pets/{petID}/appointments", bookAsOwnerHandler(svc))
	booking.Post("/vets/me/appointments", bookAsVetHandler(svc))

	r.Get("/vets/me/appointments", listVetAppointmentsHandler(svc))
	r.Get("/me/appointments", listMyAppointmentsHandler(svc))

	r.Route("/appointments/{appointmentID}", func(ar chi.Router) {
		ar.Get("/", getAppointmentHandler(svc))
		ar.Patch("/", rescheduleHandler(svc))
		ar.Post("/cancel", cancelHandler(svc))
	})
}

type bookAsOwnerRequest struct {
	VetID   string `json:"vet_id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Slot    string `json:"slot"`
	Purpose string `json:"purpose"`
}

type bookAsVetRequest struct {
	OwnerID string `json:"owner_id"`
	PetID   string `json:"pet_id"`
	Date    string `json:"date"`
	Slot    string `json:"slot"`
	Purpose string `json:"purpose"`
}

type rescheduleRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Date    *string `json:"date"`
	Slot    *string `json:"slot"`
	Purpose *string `json:"purpose"`
	PetID   *string `json:"pet_id"`
	UserID  *string `json:"user_id"`
}

type appointmentResponse struct {
	ID          string     `json:"id"`
	PetID       string     `json:"pet_id"`
	UserID      string     `json:"user_id"`
	VetID       string     `json:"vet_id"`
	Date        string     `json:"date"`
	Slot        string     `json:"slot"`
	Purpose     Purpose    `json:"purpose"`
	Status      Status     `json:"status"`
	BookedBy    BookedBy   `json:"booked_by"`
	PetName     string     `json:"pet_name,omitempty"`
	OwnerName   string     `json:"owner_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type pageResponse struct {
	Items      []appointmentResponse `json:"items"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	Total      int                   `json:"total"`
	TotalPages int                   `json:"total_pages"`
	HasNext    bool                  `json:"has_next"`
	HasPrev    bool                  `json:"has_prev"`
}

// bookAsOwnerHandler godoc
// @Summary Reservar turno para mi mascota
// @Description El dueño reserva (vet, fecha, slot). 409 si otro request ganó el slot: conviene volver a consultar slots libres.
// @Tags appointments
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body bookAsOwnerRequest true "Vet, fecha YYYY-MM-DD, slot y motivo"
// @Success 201 {object} appointmentResponse
// @Failure 400 {object} apierror.Body
// @Failure 403 {object} apierror.Body "la mascota no es del usuario"
// @Failure 404 {object} apierror.Body
// @Failure 409 {object} apierror.Body "slot ya reservado"
// @Failure 422 {object} apierror.Body "slot no publicado"
// @Failure 429 {object} apierror.Body
// @Router /pets/{petID}/appointments [post]
func bookAsOwnerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.CallerWithRole(w, r, auth.RoleUser)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req bookAsOwnerRequest
		if err := dec.Decode(&req); err != nil {
			apierror.Write(w, apierror.KindValidation, "invalid json")
			return
		}
		date, err := availability.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			apierror.Write(w, apierror.KindValidation, "date must be YYYY-MM-DD")
			return
		}

		a, err := svc.Book(r.Context(), BookedByOwner{
			OwnerID:   claims.UserID,
			OwnerName: claims.Name,
			PetID:     chi.URLParam(r, "petID"),
			VetID:     req.VetID,
			Date:      date,
			Slot:      req.Slot,
			Purpose:   Purpose(req.Purpose),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusCreated, toResponse(a))
	}
}

// bookAsVetHandler godoc
// @Summary Cargar turno como vet
// @Description El vet autenticado reserva en su propia agenda para la mascota de un dueño.
// @Tags appointments
// @Accept json
// @Produce json
// @Param payload body bookAsVetRequest true "Dueño, mascota, fecha, slot y motivo"
// @Success 201 {object} appointmentResponse
// @Failure 400 {object} apierror.Body
// @Failure 409 {object} apierror.Body
// @Failure 422 {object} apierror.Body
// @Router /vets/me/appointments [post]
func bookAsVetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.CallerWithRole(w, r, auth.RoleVet)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req bookAsVetRequest
		if err := dec.Decode(&req); err != nil {
			apierror.Write(w, apierror.KindValidation, "invalid json")
			return
		}
		date, err := availability.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			apierror.Write(w, apierror.KindValidation, "date must be YYYY-MM-DD")
			return
		}

		a, err := svc.Book(r.Context(), BookedByVet{
			VetID:   claims.UserID,
			OwnerID: req.OwnerID,
			PetID:   req.PetID,
			Date:    date,
			Slot:    req.Slot,
			Purpose: Purpose(req.Purpose),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusCreated, toResponse(a))
	}
}

// cancelHandler godoc
// @Summary Cancelar turno
// @Description Solo el vet asignado. Cancelar un turno ya cancelado responde 200 sin cambios.
// @Tags appointments
// @Produce json
// @Param appointmentID path string true "ID del turno"
// @Success 200 {object} appointmentResponse
// @Failure 403 {object} apierror.Body
// @Failure 404 {object} apierror.Body
// @Router /appointments/{appointmentID}/cancel [post]
func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Caller(w, r)
		if !ok {
			return
		}

		a, err := svc.Cancel(r.Context(), actorOf(claims), chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

// rescheduleHandler godoc
// @Summary Reprogramar turno
// @Description Solo el vet asignado. Aplica los campos enviados y deja el turno en pending.
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointmentID path string true "ID del turno"
// @Param payload body rescheduleRequest true "Campos a cambiar"
// @Success 200 {object} appointmentResponse
// @Failure 400 {object} apierror.Body
// @Failure 403 {object} apierror.Body
// @Failure 409 {object} apierror.Body
// @Router /appointments/{appointmentID} [patch]
func rescheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Caller(w, r)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req rescheduleRequest
		if err := dec.Decode(&req); err != nil {
			apierror.Write(w, apierror.KindValidation, "invalid json")
			return
		}

		in := RescheduleInput{
			Slot:   req.Slot,
			PetID:  req.PetID,
			UserID: req.UserID,
		}
		if req.Date != nil {
			d, err := availability.ParseDate(strings.TrimSpace(*req.Date))
			if err != nil {
				apierror.Write(w, apierror.KindValidation, "date must be YYYY-MM-DD")
				return
			}
			in.Date = &d
		}
		if req.Purpose != nil {
			p := Purpose(*req.Purpose)
			in.Purpose = &p
		}

		a, err := svc.Reschedule(r.Context(), actorOf(claims), chi.URLParam(r, "appointmentID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

func getAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Caller(w, r)
		if !ok {
			return
		}

		a, err := svc.Get(r.Context(), actorOf(claims), chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

// listVetAppointmentsHandler godoc
// @Summary Listar turnos del vet
// @Description Más recientes primero. search filtra por nombre de mascota o dueño antes de paginar.
// @Tags appointments
// @Produce json
// @Param status query string false "pending | scheduled | cancelled"
// @Param search query string false "Texto a buscar"
// @Param page query int false "Página (default 1)"
// @Param page_size query int false "Tamaño de página (default 10, max 100)"
// @Success 200 {object} pageResponse
// @Router /vets/me/appointments [get]
func listVetAppointmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.CallerWithRole(w, r, auth.RoleVet)
		if !ok {
			return
		}
		q, ok := parseListQuery(w, r)
		if !ok {
			return
		}

		page, err := svc.ListForVet(r.Context(), claims.UserID, q)
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toPageResponse(page))
	}
}

func listMyAppointmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Caller(w, r)
		if !ok {
			return
		}
		q, ok := parseListQuery(w, r)
		if !ok {
			return
		}

		page, err := svc.ListForUser(r.Context(), claims.UserID, q)
		if err != nil {
			writeError(w, err)
			return
		}
		apierror.WriteJSON(w, http.StatusOK, toPageResponse(page))
	}
}

func parseListQuery(w http.ResponseWriter, r *http.Request) (ListQuery, bool) {
	qs := r.URL.Query()
	q := ListQuery{
		Status: Status(strings.TrimSpace(qs.Get("status"))),
		Search: qs.Get("search"),
	}

	var err error
	if v := strings.TrimSpace(qs.Get("page")); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			apierror.Write(w, apierror.KindValidation, "page must be a number")
			return ListQuery{}, false
		}
	}
	if v := strings.TrimSpace(qs.Get("page_size")); v != "" {
		if q.PageSize, err = strconv.Atoi(v); err != nil {
			apierror.Write(w, apierror.KindValidation, "page_size must be a number")
			return ListQuery{}, false
		}
	}
	return q, true
}

func actorOf(c auth.Claims) Actor {
	return Actor{UserID: c.UserID, IsVet: c.IsVet()}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		apierror.Write(w, apierror.KindValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		apierror.Write(w, apierror.KindNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		apierror.Write(w, apierror.KindForbidden, "forbidden")
	case errors.Is(err, ErrSlotNotOffered):
		apierror.Write(w, apierror.KindSlotNotOffered, "slot not offered by vet on that date")
	case errors.Is(err, ErrConflict):
		apierror.Write(w, apierror.KindConflict, "slot already booked")
	default:
		apierror.Internal(w)
	}
}

func toResponse(a Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		PetID:       a.PetID,
		UserID:      a.UserID,
		VetID:       a.VetID,
		Date:        a.Date.Format(availability.DateLayout),
		Slot:        a.Slot,
		Purpose:     a.Purpose,
		Status:      a.Status,
		BookedBy:    a.BookedBy,
		PetName:     a.PetName,
		OwnerName:   a.OwnerName,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		CancelledAt: a.CancelledAt,
	}
}

func toPageResponse(p pagination.Page[Appointment]) pageResponse {
	items := make([]appointmentResponse, 0, len(p.Items))
	for _, a := range p.Items {
		items = append(items, toResponse(a))
	}
	return pageResponse{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext(),
		HasPrev:    p.HasPrev(),
	}
}
