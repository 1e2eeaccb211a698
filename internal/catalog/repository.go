package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/salon-storefront/internal/cart"
	"github.com/wolfman30/salon-storefront/pkg/logging"
)

// ErrUnknownSalon is returned for salons the catalog does not know. It is
// the cart's sentinel so the cart handler can answer 404.
var ErrUnknownSalon = cart.ErrUnknownSalon

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository reads salon menus from the booking tables.
type Repository struct {
	db     db
	logger *logging.Logger
}

// NewRepository creates a Repository.
func NewRepository(db db, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, logger: logger}
}

const menuQuery = `
	SELECT ss.service_id, COALESCE(sts.stylist_id, 0)
	FROM booking_salonservice ss
	JOIN booking_service s ON s.id = ss.service_id
	LEFT JOIN booking_stylistservice sts ON sts.salon_service_id = ss.id
	WHERE ss.salon_id = $1
	  AND ss.is_active
	  AND s.is_active
	ORDER BY ss.position, ss.id, sts.stylist_id
`

// Menu returns the active services of the salon in page order together
// with the stylists performing each. Services nobody performs are
// listed without stylists.
func (r *Repository) Menu(ctx context.Context, salonID string) (cart.Menu, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(salonID), 10, 64)
	if err != nil {
		return cart.Menu{}, fmt.Errorf("%w: %q", ErrUnknownSalon, salonID)
	}

	rows, err := r.db.Query(ctx, menuQuery, id)
	if err != nil {
		return cart.Menu{}, fmt.Errorf("catalog: query menu: %w", err)
	}
	defer rows.Close()

	menu := cart.Menu{ServiceIDs: []int64{}, Stylists: cart.StylistsMap{}}
	seen := map[int64]struct{}{}
	for rows.Next() {
		var serviceID int64
		var stylistID int64
		if err := rows.Scan(&serviceID, &stylistID); err != nil {
			return cart.Menu{}, fmt.Errorf("catalog: scan menu: %w", err)
		}
		if _, ok := seen[serviceID]; !ok {
			seen[serviceID] = struct{}{}
			menu.ServiceIDs = append(menu.ServiceIDs, serviceID)
		}
		if stylistID > 0 {
			menu.Stylists[serviceID] = append(menu.Stylists[serviceID], stylistID)
		}
	}
	if err := rows.Err(); err != nil {
		return cart.Menu{}, fmt.Errorf("catalog: iterate menu: %w", err)
	}
	r.logger.Debug("catalog: menu loaded", "salon_id", salonID, "services", len(menu.ServiceIDs))
	return menu, nil
}
