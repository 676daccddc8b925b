package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vet-scheduling/internal/adapters/auth/jwtauth"
	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/ports/auth"
	"vet-scheduling/internal/router"
)

type caller struct {
	id   string
	role string
	name string
}

var (
	vet   = caller{id: "vet-1", role: "vet", name: "Dra. Paz"}
	ana   = caller{id: "user-ana", role: "user", name: "Ana"}
	bruno = caller{id: "user-bruno", role: "user", name: "Bruno"}
)

func day(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
}

func TestHTTP_EndToEnd_BookingFlow(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	d := day(3)

	// 1) Vet publica disponibilidad
	{
		st, body := doReq(t, ts.URL, "PUT", "/vets/me/availability", vet, map[string]any{
			"entries": []map[string]any{{"date": d, "slots": []string{"09:00", "09:30"}}},
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 publish, got %d body=%s", st, string(body))
		}
	}

	// 2) Dos dueños registran mascotas
	luna := createPet(t, ts.URL, ana, map[string]any{"name": "Luna", "species": "dog"})
	michi := createPet(t, ts.URL, bruno, map[string]any{"name": "Michi", "species": "cat"})

	// 3) Ambos intentan el mismo slot a la vez: gana exactamente uno
	type result struct {
		status int
		body   []byte
	}
	results := make([]result, 2)
	var wg sync.WaitGroup
	for i, c := range []struct {
		who caller
		pet string
	}{{ana, luna}, {bruno, michi}} {
		wg.Add(1)
		go func(i int, who caller, pet string) {
			defer wg.Done()
			st, body, err := send(ts.URL, "POST", "/pets/"+pet+"/appointments", who, map[string]any{
				"vet_id": vet.id, "date": d, "slot": "09:00",
			})
			if err != nil {
				body = []byte(err.Error())
			}
			results[i] = result{st, body}
		}(i, c.who, c.pet)
	}
	wg.Wait()

	var winner []byte
	conflicts := 0
	for _, r := range results {
		switch r.status {
		case http.StatusCreated:
			winner = r.body
		case http.StatusConflict:
			conflicts++
		default:
			t.Fatalf("unexpected status %d body=%s", r.status, string(r.body))
		}
	}
	if winner == nil || conflicts != 1 {
		t.Fatalf("expected one 201 and one 409, got %+v", results)
	}

	var appt struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Purpose  string `json:"purpose"`
		BookedBy string `json:"booked_by"`
	}
	_ = json.Unmarshal(winner, &appt)
	if appt.Status != "scheduled" || appt.Purpose != "regular_checkup" || appt.BookedBy != "owner" {
		t.Fatalf("unexpected appointment: %s", string(winner))
	}

	// 4) Solo queda 09:30
	if got := freeSlots(t, ts.URL, ana); strings.Join(got[d], ",") != "09:30" {
		t.Fatalf("expected only 09:30 free, got %v", got)
	}

	// 5) El dueño no puede cancelar; el vet sí
	{
		st, _ := doReq(t, ts.URL, "POST", "/appointments/"+appt.ID+"/cancel", ana, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 cancel by owner, got %d", st)
		}
	}
	for i := 0; i < 2; i++ { // idempotente
		st, body := doReq(t, ts.URL, "POST", "/appointments/"+appt.ID+"/cancel", vet, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 cancel by vet, got %d body=%s", st, string(body))
		}
	}

	// 6) 09:00 vuelve a estar libre
	if got := freeSlots(t, ts.URL, ana); strings.Join(got[d], ",") != "09:00,09:30" {
		t.Fatalf("expected 09:00 reopened, got %v", got)
	}

	// 7) El vet ve su agenda paginada
	{
		st, body := doReq(t, ts.URL, "GET", "/vets/me/appointments?status=cancelled&page_size=5", vet, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d body=%s", st, string(body))
		}
		var page struct {
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		}
		_ = json.Unmarshal(body, &page)
		if page.Total != 1 || page.HasNext {
			t.Fatalf("unexpected page: %s", string(body))
		}
	}
}

func TestHTTP_Booking_Errors(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	d := day(2)
	st, body := doReq(t, ts.URL, "PUT", "/vets/me/availability", vet, map[string]any{
		"entries": []map[string]any{{"date": d, "slots": []string{"10:00"}}},
	})
	if st != http.StatusOK {
		t.Fatalf("publish: %d %s", st, string(body))
	}
	luna := createPet(t, ts.URL, ana, map[string]any{"name": "Luna", "species": "dog"})

	tests := []struct {
		name   string
		method string
		path   string
		who    caller
		body   map[string]any
		want   int
	}{
		{"sin auth", "POST", "/pets/" + luna + "/appointments", caller{}, map[string]any{"vet_id": vet.id, "date": d, "slot": "10:00"}, http.StatusUnauthorized},
		{"mascota ajena", "POST", "/pets/" + luna + "/appointments", bruno, map[string]any{"vet_id": vet.id, "date": d, "slot": "10:00"}, http.StatusForbidden},
		{"slot no ofrecido", "POST", "/pets/" + luna + "/appointments", ana, map[string]any{"vet_id": vet.id, "date": d, "slot": "11:00"}, http.StatusUnprocessableEntity},
		{"vet sin agenda", "POST", "/pets/" + luna + "/appointments", ana, map[string]any{"vet_id": "vet-x", "date": d, "slot": "10:00"}, http.StatusNotFound},
		{"fecha inválida", "POST", "/pets/" + luna + "/appointments", ana, map[string]any{"vet_id": vet.id, "date": "mañana", "slot": "10:00"}, http.StatusBadRequest},
		{"campo desconocido (dueño)", "POST", "/pets/" + luna + "/appointments", ana, map[string]any{"vet_id": vet.id, "date": d, "slot": "10:00", "user_id": bruno.id}, http.StatusBadRequest},
		{"campo desconocido (vet)", "POST", "/vets/me/appointments", vet, map[string]any{"owner_id": ana.id, "pet_id": luna, "date": d, "slot": "10:00", "status": "confirmed"}, http.StatusBadRequest},
		{"user no publica", "PUT", "/vets/me/availability", ana, map[string]any{"entries": []map[string]any{{"date": d, "slots": []string{"10:00"}}}}, http.StatusForbidden},
		{"publicar en el pasado", "PUT", "/vets/me/availability", vet, map[string]any{"entries": []map[string]any{{"date": day(-1), "slots": []string{"10:00"}}}}, http.StatusBadRequest},
		{"turno inexistente", "GET", "/appointments/nope", ana, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, body := doReq(t, ts.URL, tt.method, tt.path, tt.who, tt.body)
			if st != tt.want {
				t.Fatalf("expected %d, got %d body=%s", tt.want, st, string(body))
			}
			if !strings.Contains(string(body), `"error"`) {
				t.Fatalf("expected error envelope, got %s", string(body))
			}
		})
	}
}

func TestHTTP_Booking_RateLimited(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{
		BookingLimiter: middleware.NewRateLimiter(0.001, 1),
	}))
	defer ts.Close()

	path := "/pets/missing/appointments"
	payload := map[string]any{"vet_id": vet.id, "date": day(1), "slot": "09:00"}

	if st, _ := doReq(t, ts.URL, "POST", path, ana, payload); st == http.StatusTooManyRequests {
		t.Fatalf("first request should not be limited")
	}
	if st, _ := doReq(t, ts.URL, "POST", path, ana, payload); st != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", st)
	}
	// otro caller tiene su propio bucket
	if st, _ := doReq(t, ts.URL, "POST", path, bruno, payload); st == http.StatusTooManyRequests {
		t.Fatalf("bruno should not be limited")
	}
}

func TestHTTP_JWTVerifier(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: jwtauth.NewVerifier("secret"),
	}))
	defer ts.Close()

	// con verifier los headers de debug no autentican
	if st, _ := doReq(t, ts.URL, "GET", "/pets", ana, nil); st != http.StatusUnauthorized {
		t.Fatalf("expected 401 with debug headers, got %d", st)
	}

	tok, err := jwtauth.MakeToken("secret", auth.Claims{UserID: ana.id, Role: auth.RoleUser}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req, _ := http.NewRequest("GET", ts.URL+"/pets", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", res.StatusCode)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	for _, p := range []string{"/health", "/metrics"} {
		st, body := doReq(t, ts.URL, "GET", p, caller{}, nil)
		if st != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", p, st, string(body))
		}
	}
}

func createPet(t *testing.T, baseURL string, who caller, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/pets", who, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create pet, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create pet: missing id body=%s", string(body))
	}
	return resp.ID
}

func freeSlots(t *testing.T, baseURL string, who caller) map[string][]string {
	t.Helper()

	st, body := doReq(t, baseURL, "GET", "/vets/"+vet.id+"/slots", who, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 slots, got %d body=%s", st, string(body))
	}
	var days []struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	_ = json.Unmarshal(body, &days)

	out := make(map[string][]string, len(days))
	for _, d := range days {
		out[d.Date] = d.Slots
	}
	return out
}

func doReq(t *testing.T, baseURL, method, path string, who caller, payload any) (int, []byte) {
	t.Helper()

	st, b, err := send(baseURL, method, path, who, payload)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return st, b
}

// send no usa t: se llama también desde goroutines.
func send(baseURL, method, path string, who caller, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.id != "" {
		req.Header.Set(middleware.HeaderDebugUserID, who.id)
		req.Header.Set(middleware.HeaderDebugRole, who.role)
		req.Header.Set(middleware.HeaderDebugUserName, who.name)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	return res.StatusCode, b, err
}
