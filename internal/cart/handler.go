package cart

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salon-storefront/internal/navigation"
	"github.com/wolfman30/salon-storefront/internal/session"
	"github.com/wolfman30/salon-storefront/pkg/logging"
)

var cartTracer = otel.Tracer("salon.internal.cart")

const maxImportBytes = 64 << 10

// ErrUnknownSalon is returned by a MenuSource for salons it does not know.
var ErrUnknownSalon = errors.New("cart: unknown salon")

// MenuSource looks up what a salon offers.
type MenuSource interface {
	Menu(ctx context.Context, salonID string) (Menu, error)
}

// Recorder receives cart outcomes for metrics.
type Recorder interface {
	ObserveToggle(outcome string)
	ObserveBooking(outcome string)
	ObservePurged(n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveToggle(string)  {}
func (noopRecorder) ObserveBooking(string) {}
func (noopRecorder) ObservePurged(int)     {}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Storage     StorageFactory
	Menus       MenuSource
	TTL         time.Duration
	BookingPath string
	Metrics     Recorder
	Logger      *logging.Logger
}

// Handler serves the cart endpoints for the visitor session found in the
// request context.
type Handler struct {
	storage     StorageFactory
	menus       MenuSource
	ttl         time.Duration
	bookingPath string
	metrics     Recorder
	logger      *logging.Logger
	locks       [64]sync.Mutex
}

// NewHandler builds a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	var rec Recorder = noopRecorder{}
	if cfg.Metrics != nil {
		rec = cfg.Metrics
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Handler{
		storage:     cfg.Storage,
		menus:       cfg.Menus,
		ttl:         ttl,
		bookingPath: cfg.BookingPath,
		metrics:     rec,
		logger:      logger,
	}
}

// Register mounts the cart routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/salons/{salonID}/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items/{serviceID}", h.ToggleItem)
		r.Post("/booking", h.StartBooking)
		r.Post("/import", h.ImportStorage)
	})
}

type fullCartResponse struct {
	View View `json:"view"`
	Menu Menu `json:"menu"`
}

// GetCart returns the view. Partial (XHR) requests get the view alone; full
// requests also get the salon menu.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *Controller, menu Menu) {
		view := c.View(ctx)
		if navigation.IsPartial(r) {
			writeJSON(w, http.StatusOK, view)
			return
		}
		writeJSON(w, http.StatusOK, fullCartResponse{View: view, Menu: menu})
	})
}

// ToggleItem adds or removes one service.
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	serviceID, err := strconv.ParseInt(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}
	h.withController(w, r, func(ctx context.Context, c *Controller, _ Menu) {
		result, err := c.Toggle(ctx, serviceID)
		h.metrics.ObserveToggle(string(result))
		payload := map[string]any{"result": result, "view": c.View(ctx)}
		if err != nil {
			payload["error"] = UserMessage(err)
			writeJSON(w, http.StatusConflict, payload)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	})
}

// ClearCart empties the salon cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *Controller, _ Menu) {
		c.Clear(ctx)
		writeJSON(w, http.StatusOK, c.View(ctx))
	})
}

// StartBooking hands the cart off to the booking page. Partial requests get
// the URL as JSON; others are redirected.
func (h *Handler) StartBooking(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *Controller, _ Menu) {
		target, err := c.BookingURL(ctx)
		if err != nil {
			h.metrics.ObserveBooking(bookingOutcome(err))
			status := http.StatusConflict
			if errors.Is(err, ErrMissingSalon) {
				status = http.StatusBadRequest
			}
			msg := UserMessage(err)
			if msg == "" {
				msg = err.Error()
			}
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		h.metrics.ObserveBooking("redirected")
		if navigation.IsPartial(r) {
			writeJSON(w, http.StatusOK, map[string]string{"url": target})
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

type importRequest struct {
	SalonCarts     *string `json:"salonCarts"`
	Cart           *string `json:"cart"`
	CartTimestamp  *string `json:"cartTimestamp"`
	CurrentSalonID *string `json:"currentSalonId"`
}

// ImportStorage accepts the browser's local storage keys, merges them into
// the session storage and returns the resulting view.
func (h *Handler) ImportStorage(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid import payload"})
		return
	}
	imported := h.withStorage(w, r, func(ctx context.Context, storage Storage, store *Store) {
		if req.SalonCarts != nil {
			store.Import(ctx, *req.SalonCarts)
		}
		legacy := []struct {
			key   string
			value *string
		}{
			{LegacyCartKey, req.Cart},
			{LegacyTimestampKey, req.CartTimestamp},
			{LegacySalonKey, req.CurrentSalonID},
		}
		for _, item := range legacy {
			if item.value == nil {
				continue
			}
			if err := storage.SetItem(ctx, item.key, *item.value); err != nil {
				h.logger.Debug("cart: import legacy key failed", "key", item.key, "error", err)
			}
		}
	})
	if !imported {
		return
	}
	h.withController(w, r, func(ctx context.Context, c *Controller, _ Menu) {
		writeJSON(w, http.StatusOK, c.View(ctx))
	})
}

// withStorage runs fn under the session lock. It reports false, having
// already answered 401, when the request has no session.
func (h *Handler) withStorage(w http.ResponseWriter, r *http.Request, fn func(context.Context, Storage, *Store)) bool {
	sessionID, ok := session.IDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session required"})
		return false
	}
	mu := h.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	storage := h.storage(sessionID)
	store := NewStore(storage,
		WithTTL(h.ttl),
		WithLogger(h.logger),
		WithPurgeHook(h.metrics.ObservePurged),
	)
	fn(r.Context(), storage, store)
	return true
}

func (h *Handler) withController(w http.ResponseWriter, r *http.Request, fn func(context.Context, *Controller, Menu)) {
	ctx, span := cartTracer.Start(r.Context(), "cart.request")
	defer span.End()

	salonID := chi.URLParam(r, "salonID")
	span.SetAttributes(attribute.String("salon.id", salonID))

	menu, err := h.menus.Menu(ctx, salonID)
	if errors.Is(err, ErrUnknownSalon) {
		h.logger.Debug("cart: unknown salon", "salon_id", salonID)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "salon not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("cart: load menu failed", "salon_id", salonID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "salon catalog unavailable"})
		return
	}

	h.withStorage(w, r.WithContext(ctx), func(ctx context.Context, _ Storage, store *Store) {
		c, err := NewController(ctx, store, ControllerConfig{
			SalonID:     salonID,
			Menu:        menu,
			BookingPath: h.bookingPath,
			Logger:      h.logger,
		})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": UserMessage(err)})
			return
		}
		fn(ctx, c, menu)
	})
}

func (h *Handler) lockFor(sessionID string) *sync.Mutex {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(sessionID))
	return &h.locks[hasher.Sum32()%uint32(len(h.locks))]
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty"
	case errors.Is(err, ErrNoCommonStylist):
		return "no_common_stylist"
	default:
		return "missing_salon"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
