package appointments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/domain/pets"
	"vet-scheduling/internal/ports/notify"
)

// -------------------------
// Test repo (in-memory, con índice de Keys vivas)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Appointment
	live map[Key]string

	// claimErrs se consumen en orden antes de intentar el insert real.
	claimErrs []error
	// writeThenFail simula un insert que persiste pero reporta error.
	writeThenFail bool
	claims        int32
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Appointment{}, live: map[Key]string{}}
}

func (r *testRepo) Claim(ctx context.Context, a Appointment) error {
	atomic.AddInt32(&r.claims, 1)
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.claimErrs) > 0 {
		err := r.claimErrs[0]
		r.claimErrs = r.claimErrs[1:]
		return err
	}
	if _, taken := r.live[a.Key()]; taken {
		return ErrSlotTaken
	}
	r.byID[a.ID] = a
	r.live[a.Key()] = a.ID
	if r.writeThenFail {
		r.writeThenFail = false
		return errors.New("connection reset")
	}
	return nil
}

func (r *testRepo) Update(ctx context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[a.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if a.Status.Live() {
		if id, taken := r.live[a.Key()]; taken && id != a.ID {
			return ErrSlotTaken
		}
	}
	if old.Status.Live() {
		delete(r.live, old.Key())
	}
	if a.Status.Live() {
		r.live[a.Key()] = a.ID
	}
	r.byID[a.ID] = a
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Appointment{}, ErrRecordNotFound
	}
	return a, nil
}

func (r *testRepo) ListLive(ctx context.Context, vetID string, from time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0)
	for _, a := range r.byID {
		if a.VetID == vetID && a.Status.Live() && !a.Date.Before(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) List(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Appointment, 0)
	for _, a := range r.byID {
		if f.VetID != "" && a.VetID != f.VetID {
			continue
		}
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Search != "" {
			s := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(a.PetName), s) && !strings.Contains(strings.ToLower(a.OwnerName), s) {
				continue
			}
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// -------------------------
// Colaboradores fake
// -------------------------

type fakeAvailability map[string]availability.Availability

func (f fakeAvailability) Get(ctx context.Context, vetID string) (availability.Availability, error) {
	a, ok := f[vetID]
	if !ok {
		return availability.Availability{}, availability.ErrNotFound
	}
	return a, nil
}

type fakePets map[string]pets.Pet

func (f fakePets) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	p, ok := f[id]
	if !ok {
		return pets.Pet{}, pets.ErrNotFound
	}
	return p, nil
}

type recordingInvalidator struct {
	mu   sync.Mutex
	vets []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, vetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vets = append(r.vets, vetID)
}

type chanNotifier struct {
	ch  chan notify.Notification
	err error
}

func (c *chanNotifier) Notify(ctx context.Context, n notify.Notification) error {
	c.ch <- n
	return c.err
}

func day(s string) time.Time {
	t, err := availability.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc  *Service
	repo *testRepo
	inv  *recordingInvalidator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newTestRepo()
	inv := &recordingInvalidator{}
	svc := NewService(repo, Deps{
		Availability: fakeAvailability{
			"vet-1": {VetID: "vet-1", Entries: []availability.Entry{
				{Date: day("2025-06-01"), Slots: []string{"09:00", "09:30"}},
			}},
			"vet-2": {VetID: "vet-2", Entries: []availability.Entry{
				{Date: day("2025-06-01"), Slots: []string{"09:00"}},
			}},
		},
		Pets: fakePets{
			"pet-1": {ID: "pet-1", OwnerUserID: "owner-1", OwnerName: "Laura", Name: "Milo"},
			"pet-2": {ID: "pet-2", OwnerUserID: "owner-2", OwnerName: "Pedro", Name: "Luna"},
		},
		Invalidator: inv,
		Config:      Config{RetryBackoff: time.Millisecond, MaxAttempts: 3},
	})
	svc.now = func() time.Time { return time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, repo: repo, inv: inv}
}

func (f fixture) claim(t *testing.T, petID, userID, slot string) (Appointment, error) {
	t.Helper()
	return f.svc.Claim(context.Background(), ClaimInput{
		VetID:  "vet-1",
		PetID:  petID,
		UserID: userID,
		Date:   day("2025-06-01"),
		Slot:   slot,
	})
}

var vet1 = Actor{UserID: "vet-1", IsVet: true}

// -------------------------
// Claim
// -------------------------

func TestClaim_ConcurrentCallersExactlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 32
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		wins      int32
		conflicts int32
		other     int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			a, err := f.claim(t, "pet-1", "owner-1", "09:00")
			switch {
			case err == nil:
				if a.Status != StatusScheduled {
					t.Errorf("winner status = %s", a.Status)
				}
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				atomic.AddInt32(&other, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 || conflicts != n-1 || other != 0 {
		t.Fatalf("wins=%d conflicts=%d other=%d", wins, conflicts, other)
	}
}

func TestClaim_DefaultsAndDenormalizes(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Claim(context.Background(), ClaimInput{
		VetID: "vet-1", PetID: "pet-1", UserID: "owner-1",
		Date: time.Date(2025, 6, 1, 17, 45, 0, 0, time.UTC), Slot: " 09:30 ",
		PetName: "Milo", OwnerName: "Laura",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if a.Purpose != PurposeRegularCheckup || a.BookedBy != BookedByOwnerRole {
		t.Fatalf("unexpected defaults: %#v", a)
	}
	if !a.Date.Equal(day("2025-06-01")) || a.Slot != "09:30" {
		t.Fatalf("date/slot not normalized: %v %q", a.Date, a.Slot)
	}
	if len(f.inv.vets) != 1 || f.inv.vets[0] != "vet-1" {
		t.Fatalf("expected cache invalidation for vet-1, got %v", f.inv.vets)
	}
}

func TestClaim_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ClaimInput
		want error
	}{
		{"not offered", ClaimInput{VetID: "vet-1", PetID: "pet-1", UserID: "owner-1", Date: day("2025-06-01"), Slot: "11:00"}, ErrSlotNotOffered},
		{"date without availability", ClaimInput{VetID: "vet-1", PetID: "pet-1", UserID: "owner-1", Date: day("2025-06-02"), Slot: "09:00"}, ErrSlotNotOffered},
		{"vet never published", ClaimInput{VetID: "vet-9", PetID: "pet-1", UserID: "owner-1", Date: day("2025-06-01"), Slot: "09:00"}, ErrNotFound},
		{"past date", ClaimInput{VetID: "vet-1", PetID: "pet-1", UserID: "owner-1", Date: day("2025-05-29"), Slot: "09:00"}, ErrInvalidInput},
		{"missing slot", ClaimInput{VetID: "vet-1", PetID: "pet-1", UserID: "owner-1", Date: day("2025-06-01")}, ErrInvalidInput},
		{"bad purpose", ClaimInput{VetID: "vet-1", PetID: "pet-1", UserID: "owner-1", Date: day("2025-06-01"), Slot: "09:00", Purpose: "grooming"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Claim(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if atomic.LoadInt32(&f.repo.claims) != 0 {
		t.Fatalf("rejected claims must not reach the ledger")
	}
}

func TestClaim_RetriesTransientErrorsOnly(t *testing.T) {
	f := newFixture(t)
	f.repo.claimErrs = []error{errors.New("timeout"), errors.New("timeout")}

	if _, err := f.claim(t, "pet-1", "owner-1", "09:00"); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if got := atomic.LoadInt32(&f.repo.claims); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}

	// Conflicto: un solo intento.
	before := atomic.LoadInt32(&f.repo.claims)
	if _, err := f.claim(t, "pet-2", "owner-2", "09:00"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := atomic.LoadInt32(&f.repo.claims) - before; got != 1 {
		t.Fatalf("conflict must not be retried, got %d attempts", got)
	}
}

func TestClaim_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("db down")
	f.repo.claimErrs = []error{boom, boom, boom, boom}

	_, err := f.claim(t, "pet-1", "owner-1", "09:00")
	if !errors.Is(err, boom) || errors.Is(err, ErrConflict) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestClaim_RetryRecognizesOwnWrite(t *testing.T) {
	f := newFixture(t)
	f.repo.writeThenFail = true

	a, err := f.claim(t, "pet-1", "owner-1", "09:00")
	if err != nil {
		t.Fatalf("a retry that hits its own row must succeed, got %v", err)
	}
	if a.Status != StatusScheduled {
		t.Fatalf("unexpected status %s", a.Status)
	}
}

// -------------------------
// Book (variants)
// -------------------------

func TestBook_OwnerMustOwnPet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookedByOwner{OwnerID: "owner-2", PetID: "pet-1", VetID: "vet-1", Date: day("2025-06-01"), Slot: "09:00"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	a, err := f.svc.Book(ctx, BookedByOwner{OwnerID: "owner-1", PetID: "pet-1", VetID: "vet-1", Date: day("2025-06-01"), Slot: "09:00", Purpose: PurposeVaccination})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.PetName != "Milo" || a.OwnerName != "Laura" || a.UserID != "owner-1" || a.Purpose != PurposeVaccination {
		t.Fatalf("unexpected appointment: %#v", a)
	}
}

func TestBook_VetVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookedByVet{VetID: "vet-1", OwnerID: "owner-1", PetID: "pet-2", Date: day("2025-06-01"), Slot: "09:00"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched owner, got %v", err)
	}

	a, err := f.svc.Book(ctx, BookedByVet{VetID: "vet-1", OwnerID: "owner-2", PetID: "pet-2", Date: day("2025-06-01"), Slot: "09:00"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.BookedBy != BookedByVetRole || a.VetID != "vet-1" {
		t.Fatalf("unexpected appointment: %#v", a)
	}

	if _, err := f.svc.Book(ctx, BookedByOwner{OwnerID: "owner-1", PetID: "pet-404", VetID: "vet-1", Date: day("2025-06-01"), Slot: "09:30"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown pet, got %v", err)
	}
}

// -------------------------
// Lifecycle
// -------------------------

func TestCancel_OnlyAssignedVetAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.claim(t, "pet-1", "owner-1", "09:00")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, Actor{UserID: "vet-2", IsVet: true}, a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other vet: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, Actor{UserID: "owner-1"}, a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, vet1, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c1, err := f.svc.Cancel(ctx, vet1, a.ID)
	if err != nil || c1.Status != StatusCancelled || c1.CancelledAt == nil {
		t.Fatalf("cancel: %#v, %v", c1, err)
	}
	c2, err := f.svc.Cancel(ctx, vet1, a.ID)
	if err != nil || c2.Status != StatusCancelled {
		t.Fatalf("second cancel must be a no-op, got %#v, %v", c2, err)
	}

	// El slot vuelve a estar disponible.
	if _, err := f.claim(t, "pet-2", "owner-2", "09:00"); err != nil {
		t.Fatalf("slot must be claimable after cancel: %v", err)
	}
}

func TestReschedule_ResetsToPendingAndRespectsLiveKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.claim(t, "pet-1", "owner-1", "09:00")
	second, _ := f.claim(t, "pet-2", "owner-2", "09:30")

	slot := "09:30"
	if _, err := f.svc.Reschedule(ctx, vet1, first.ID, RescheduleInput{Slot: &slot}); !errors.Is(err, ErrConflict) {
		t.Fatalf("moving onto a live key must conflict, got %v", err)
	}

	// Slot no publicado: no se re-chequea disponibilidad.
	late := "18:00"
	purpose := PurposeInfection
	moved, err := f.svc.Reschedule(ctx, vet1, second.ID, RescheduleInput{Slot: &late, Purpose: &purpose})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != StatusPending || moved.Slot != "18:00" || moved.Purpose != PurposeInfection {
		t.Fatalf("unexpected rescheduled appointment: %#v", moved)
	}

	// 09:30 quedó libre.
	if _, err := f.svc.Reschedule(ctx, vet1, first.ID, RescheduleInput{Slot: &slot}); err != nil {
		t.Fatalf("freed key must be reusable: %v", err)
	}

	if _, err := f.svc.Reschedule(ctx, Actor{UserID: "owner-1"}, first.ID, RescheduleInput{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-vet reschedule: expected ErrForbidden, got %v", err)
	}
}

func TestReschedule_PetChangeKeepsOwnerConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.claim(t, "pet-1", "owner-1", "09:00")

	pet2 := "pet-2"
	wrongOwner := "owner-1"
	if _, err := f.svc.Reschedule(ctx, vet1, a.ID, RescheduleInput{PetID: &pet2, UserID: &wrongOwner}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	moved, err := f.svc.Reschedule(ctx, vet1, a.ID, RescheduleInput{PetID: &pet2})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.UserID != "owner-2" || moved.PetName != "Luna" || moved.OwnerName != "Pedro" {
		t.Fatalf("owner not derived from pet: %#v", moved)
	}

	past := day("2025-01-01")
	if _, err := f.svc.Reschedule(ctx, vet1, a.ID, RescheduleInput{Date: &past}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("past date: expected ErrInvalidInput, got %v", err)
	}
}

func TestGet_VisibleOnlyToParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.claim(t, "pet-1", "owner-1", "09:00")

	if _, err := f.svc.Get(ctx, Actor{UserID: "owner-1"}, a.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.Get(ctx, vet1, a.ID); err != nil {
		t.Fatalf("vet get: %v", err)
	}
	if _, err := f.svc.Get(ctx, Actor{UserID: "stranger"}, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger: expected ErrNotFound, got %v", err)
	}
}

// -------------------------
// Listing
// -------------------------

func TestList_NewestFirstSearchBeforePagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	names := []string{"Milo", "Luna", "Milo Jr", "Toby", "Milonga"}
	for i, name := range names {
		created := base.Add(time.Duration(i) * time.Minute)
		f.repo.byID[name] = Appointment{
			ID: name, VetID: "vet-1", UserID: "owner-1", PetName: name, OwnerName: "Laura",
			Date: day("2025-06-01"), Slot: name, Status: StatusScheduled, CreatedAt: created,
		}
	}

	page, err := f.svc.ListForVet(ctx, "vet-1", ListQuery{Search: "MILO", PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	if page.Items[0].PetName != "Milonga" || page.Items[1].PetName != "Milo Jr" {
		t.Fatalf("expected newest first, got %s, %s", page.Items[0].PetName, page.Items[1].PetName)
	}

	second, _ := f.svc.ListForVet(ctx, "vet-1", ListQuery{Search: "milo", Page: 2, PageSize: 2})
	if len(second.Items) != 1 || second.Items[0].PetName != "Milo" {
		t.Fatalf("unexpected second page: %#v", second.Items)
	}

	byOwner, _ := f.svc.ListForUser(ctx, "owner-1", ListQuery{Search: "laura"})
	if byOwner.Total != 5 || byOwner.PageSize != 10 || byOwner.Page != 1 {
		t.Fatalf("owner-name search or defaults broken: %#v", byOwner)
	}

	if _, err := f.svc.ListForUser(ctx, "owner-1", ListQuery{Status: "confirmed"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}
}

// -------------------------
// Notifications
// -------------------------

func TestNotification_FailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	n := &chanNotifier{ch: make(chan notify.Notification, 4), err: errors.New("smtp down")}
	f.svc.notifier = n

	a, err := f.claim(t, "pet-1", "owner-1", "09:00")
	if err != nil {
		t.Fatalf("claim must succeed even if notification fails: %v", err)
	}

	select {
	case got := <-n.ch:
		if got.Event != notify.EventAppointmentBooked || got.AppointmentID != a.ID {
			t.Fatalf("unexpected notification: %#v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notification not dispatched")
	}

	stored, err := f.repo.GetByID(context.Background(), a.ID)
	if err != nil || stored.Status != StatusScheduled {
		t.Fatalf("appointment must stay scheduled: %#v, %v", stored, err)
	}
}
