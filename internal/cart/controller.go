package cart

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

var (
	ErrNoCommonStylist = errors.New("cart: no stylist performs every selected service")
	ErrEmptyCart       = errors.New("cart: cart is empty")
	ErrMissingSalon    = errors.New("cart: salon id missing")
)

// UserMessage returns the text shown to the visitor for err, or "" when err
// has no visitor-facing wording.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoCommonStylist):
		return "К сожалению, нет мастера, который выполняет все выбранные услуги."
	case errors.Is(err, ErrMissingSalon):
		return "Ошибка: salon ID не найден"
	default:
		return ""
	}
}

// ToggleResult describes what Toggle did.
type ToggleResult string

const (
	ToggleAdded    ToggleResult = "added"
	ToggleRemoved  ToggleResult = "removed"
	ToggleRejected ToggleResult = "rejected"
)

// DefaultBookingPath is where the booking handoff navigates to.
const DefaultBookingPath = "/booking/"

// Menu is what a salon page offers: the services with buttons, in page
// order, and who performs them.
type Menu struct {
	ServiceIDs []int64     `json:"serviceIds"`
	Stylists   StylistsMap `json:"stylists"`
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	SalonID     string
	Menu        Menu
	BookingPath string
	Logger      *logging.Logger
}

// Controller applies cart rules for one salon on top of a Store.
type Controller struct {
	store       *Store
	salonID     string
	menu        Menu
	bookingPath string
	logger      *logging.Logger
}

// NewController runs legacy migration and cleanup, then returns a controller
// for cfg.SalonID. It fails with ErrMissingSalon when no salon id is given.
func NewController(ctx context.Context, store *Store, cfg ControllerConfig) (*Controller, error) {
	salonID := strings.TrimSpace(cfg.SalonID)
	if salonID == "" {
		return nil, ErrMissingSalon
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	bookingPath := cfg.BookingPath
	if bookingPath == "" {
		bookingPath = DefaultBookingPath
	}
	menu := cfg.Menu
	if menu.Stylists == nil {
		menu.Stylists = StylistsMap{}
	}

	if store.MigrateLegacy(ctx, salonID) {
		logger.Info("cart: migrated legacy cart", "salon_id", salonID)
	}
	store.Cleanup(ctx)

	return &Controller{
		store:       store,
		salonID:     salonID,
		menu:        menu,
		bookingPath: bookingPath,
		logger:      logger,
	}, nil
}

// SalonID returns the salon the controller serves.
func (c *Controller) SalonID() string {
	return c.salonID
}

// Items returns the persisted cart.
func (c *Controller) Items(ctx context.Context) []int64 {
	return c.store.Items(ctx, c.salonID)
}

// Toggle removes serviceID when present, otherwise adds it provided some
// stylist can still perform every selected service. A rejected add leaves
// storage untouched and returns ErrNoCommonStylist.
func (c *Controller) Toggle(ctx context.Context, serviceID int64) (ToggleResult, error) {
	items := c.store.Items(ctx, c.salonID)
	if containsID(items, serviceID) {
		next := make([]int64, 0, len(items))
		for _, id := range items {
			if id != serviceID {
				next = append(next, id)
			}
		}
		c.store.SaveItems(ctx, c.salonID, next)
		return ToggleRemoved, nil
	}

	next := append(append(make([]int64, 0, len(items)+1), items...), serviceID)
	if !c.menu.Stylists.HasCommon(next) {
		c.logger.Debug("cart: add rejected", "salon_id", c.salonID, "service_id", serviceID)
		return ToggleRejected, ErrNoCommonStylist
	}
	c.store.SaveItems(ctx, c.salonID, next)
	return ToggleAdded, nil
}

// Clear empties the salon's cart.
func (c *Controller) Clear(ctx context.Context) {
	c.store.Clear(ctx, c.salonID)
}

// View rebuilds the widget state from storage.
func (c *Controller) View(ctx context.Context) View {
	v := DeriveView(c.store.Items(ctx, c.salonID), c.menu.Stylists, c.menu.ServiceIDs)
	v.SalonID = c.salonID
	return v
}

// BookingURL returns the booking page URL for the current cart.
func (c *Controller) BookingURL(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.salonID) == "" {
		return "", ErrMissingSalon
	}
	items := c.store.Items(ctx, c.salonID)
	if len(items) == 0 {
		return "", ErrEmptyCart
	}
	if !c.menu.Stylists.HasCommon(items) {
		return "", ErrNoCommonStylist
	}
	params := url.Values{}
	params.Set("salon", c.salonID)
	for _, id := range items {
		params.Add("services", strconv.FormatInt(id, 10))
	}
	return c.bookingPath + "?" + params.Encode(), nil
}
