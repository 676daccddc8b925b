package router

import (
	"database/sql"
	"net/http"
	"time"

	"vet-scheduling/internal/adapters/cache/lrucache"
	"vet-scheduling/internal/adapters/cache/rediscache"
	"vet-scheduling/internal/adapters/notify/lognotify"
	mem "vet-scheduling/internal/adapters/storage/memory"
	pg "vet-scheduling/internal/adapters/storage/postgres"
	"vet-scheduling/internal/domain/appointments"
	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/domain/pets"
	"vet-scheduling/internal/domain/slots"
	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/observability/metrics"
	"vet-scheduling/internal/platform/logger"
	"vet-scheduling/internal/ports/auth"
	"vet-scheduling/internal/ports/notify"
	"vet-scheduling/internal/ports/slotcache"

	_ "vet-scheduling/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: si viene, el cache de slots vive en Redis. Si no, LRU en proceso.
	Redis redis.Cmdable

	Logger   logger.Logger
	Registry *prometheus.Registry // nil => registry propio

	// Opcional: main lo crea para poder correr su limpieza.
	BookingLimiter *middleware.RateLimiter
	Notifier       notify.Notifier

	SlotCacheTTL  time.Duration
	SlotCacheSize int

	Booking appointments.Config
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.SlotCacheTTL <= 0 {
		o.SlotCacheTTL = 30 * time.Second
	}
	if o.SlotCacheSize <= 0 {
		o.SlotCacheSize = 1024
	}
	if o.BookingLimiter == nil {
		o.BookingLimiter = middleware.NewRateLimiter(5, 10)
	}
	if o.Notifier == nil {
		o.Notifier = lognotify.New(o.Logger)
	}
}

func NewRouter(opts Options) http.Handler {
	opts.defaults()
	log := opts.Logger

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		petRepo   pets.Repository
		availRepo availability.Repository
		apptRepo  appointments.Repository
	)
	if opts.DB != nil {
		petRepo = pg.NewPetsRepo(opts.DB)
		availRepo = pg.NewAvailabilityRepo(opts.DB)
		apptRepo = pg.NewAppointmentsRepo(opts.DB)
	} else {
		petRepo = mem.NewPetRepo()
		availRepo = mem.NewAvailabilityRepo()
		apptRepo = mem.NewAppointmentsRepo()
	}

	var cache slotcache.Cache
	if opts.Redis != nil {
		cache = rediscache.New(opts.Redis, opts.SlotCacheTTL)
	} else if c, err := lrucache.New(opts.SlotCacheSize, opts.SlotCacheTTL); err == nil {
		cache = c
	} else {
		log.Warn("slot cache disabled", map[string]any{"error": err})
	}

	// Services por módulo
	petsSvc := pets.NewService(petRepo)
	slotsSvc := slots.NewService(availRepo, apptRepo, cache, log)
	availSvc := availability.NewService(availRepo, slotsSvc, log)
	apptSvc := appointments.NewService(apptRepo, appointments.Deps{
		Availability: availSvc,
		Pets:         petsSvc,
		Invalidator:  slotsSvc,
		Notifier:     opts.Notifier,
		Metrics:      metrics.NewBookingMetrics(opts.Registry),
		Logger:       log,
		Config:       opts.Booking,
	})

	// Rutas por módulo
	pets.RegisterRoutes(r, petsSvc)
	availability.RegisterRoutes(r, availSvc)
	slots.RegisterRoutes(r, slotsSvc)
	appointments.RegisterRoutes(r, apptSvc, middleware.RateLimit(opts.BookingLimiter))

	return r
}
