package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/showrunr/eventcrm-backend/api/controllers"
	"github.com/showrunr/eventcrm-backend/api/middleware"
	catalogsvc "github.com/showrunr/eventcrm-backend/internal/catalog"
	conflictsvc "github.com/showrunr/eventcrm-backend/internal/conflicts"
	equipmentsvc "github.com/showrunr/eventcrm-backend/internal/equipment"
	eventsvc "github.com/showrunr/eventcrm-backend/internal/events"
	offersvc "github.com/showrunr/eventcrm-backend/internal/offers"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	pkgredis "github.com/showrunr/eventcrm-backend/pkg/redis"
)

// Deps carries everything the router needs. cmd/api builds one after wiring
// the services.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	IdempotencyStore pkgredis.IdempotencyStore
	Pingers          map[string]controllers.Pinger

	Events    eventsvc.Service
	Catalog   catalogsvc.Service
	Equipment *equipmentsvc.Repository
	Conflicts *conflictsvc.Pool
	Offers    offersvc.Service
	Syncer    controllers.LedgerSyncer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", controllers.ListEvents(deps.Events, logg))
			r.Get("/{eventID}", controllers.GetEvent(deps.Events, logg))
			r.With(middleware.RequireRole(logg, string(enums.RoleAdmin), string(enums.RolePlanner))).
				Post("/", controllers.CreateEvent(deps.Events, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/{productID}", controllers.GetProduct(deps.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, string(enums.RoleAdmin)))
				r.Post("/", controllers.CreateProduct(deps.Catalog, logg))
				r.Patch("/{productID}", controllers.UpdateProduct(deps.Catalog, logg))
				r.Delete("/{productID}", controllers.DeactivateProduct(deps.Catalog, logg))
			})
		})

		r.Route("/equipment", func(r chi.Router) {
			r.Get("/items", controllers.ListEquipmentItems(deps.Equipment, logg))
			r.Get("/kits", controllers.ListEquipmentKits(deps.Equipment, logg))
			r.Get("/availability", controllers.EquipmentAvailability(deps.Equipment, logg))
		})

		r.Post("/conflicts/check", controllers.CheckConflicts(deps.Conflicts, logg))

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", controllers.ListOffers(deps.Offers, logg))
			r.Get("/{offerID}", controllers.GetOffer(deps.Offers, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, string(enums.RoleAdmin), string(enums.RoleSales)))
				r.Post("/", controllers.CommitOffer(deps.Offers, logg))
				r.Post("/{offerID}/status", controllers.UpdateOfferStatus(deps.Offers, logg))
				r.Post("/{offerID}/sync", controllers.SyncOfferLedger(deps.Syncer, logg))
				r.Delete("/{offerID}", controllers.DeleteOffer(deps.Offers, logg))
			})
		})
	})

	return r
}
