package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfman30/salon-storefront/internal/cart"
)

// Static serves menus from a fixed document, for local runs without the
// booking database.
type Static struct {
	menus map[string]cart.Menu
}

type staticFile struct {
	Salons map[string]struct {
		Services []int64        `json:"services"`
		Stylists map[string]any `json:"stylists"`
	} `json:"salons"`
}

// LoadFile reads a static catalog from path.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadStatic(f)
}

// ReadStatic decodes a catalog document of the form
// {"salons":{"7":{"services":[1,2],"stylists":{"1":[10]}}}}.
func ReadStatic(r io.Reader) (*Static, error) {
	var doc staticFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	s := &Static{menus: make(map[string]cart.Menu, len(doc.Salons))}
	for salonID, salon := range doc.Salons {
		stylists := cart.NormalizeStylistsMap(salon.Stylists)
		services := salon.Services
		if len(services) == 0 {
			services = stylists.ServiceIDs()
		}
		s.menus[salonID] = cart.Menu{ServiceIDs: services, Stylists: stylists}
	}
	return s, nil
}

// NewStatic wraps prepared menus.
func NewStatic(menus map[string]cart.Menu) *Static {
	return &Static{menus: menus}
}

// Menu returns the salon's menu, or ErrUnknownSalon.
func (s *Static) Menu(_ context.Context, salonID string) (cart.Menu, error) {
	menu, ok := s.menus[salonID]
	if !ok {
		return cart.Menu{}, fmt.Errorf("%w: %q", ErrUnknownSalon, salonID)
	}
	return menu, nil
}
