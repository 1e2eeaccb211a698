package cart

const (
	LabelAdded           = "✅ Добавлено (нажмите, чтобы удалить)"
	LabelAdd             = "➕ Добавить услугу"
	TitleNoCommonStylist = "Нет мастеров, выполняющих все выбранные услуги"
)

// ButtonState is the rendered state of one service's add/remove button.
type ButtonState struct {
	ServiceID int64  `json:"serviceId"`
	Added     bool   `json:"added"`
	Label     string `json:"label"`
}

// View is everything the page needs to render the cart widget.
type View struct {
	SalonID        string        `json:"salonId"`
	Items          []int64       `json:"items"`
	Count          int           `json:"count"`
	CommonStylists []int64       `json:"commonStylists"`
	BookingEnabled bool          `json:"bookingEnabled"`
	BookingTitle   string        `json:"bookingTitle,omitempty"`
	CartVisible    bool          `json:"cartVisible"`
	WarningVisible bool          `json:"warningVisible"`
	Buttons        []ButtonState `json:"buttons"`
}

// DeriveView computes the widget state for items against the salon's
// stylists map. serviceIDs lists the services that have buttons on the page.
func DeriveView(items []int64, stylists StylistsMap, serviceIDs []int64) View {
	items = uniqueIDs(items)
	count := len(items)
	hasCommon := stylists.HasCommon(items)

	v := View{
		Items:          items,
		Count:          count,
		CommonStylists: stylists.Common(items),
		BookingEnabled: count > 0 && hasCommon,
		CartVisible:    count > 0,
		WarningVisible: count > 0 && !hasCommon,
		Buttons:        make([]ButtonState, 0, len(serviceIDs)),
	}
	if v.WarningVisible {
		v.BookingTitle = TitleNoCommonStylist
	}
	for _, serviceID := range serviceIDs {
		added := containsID(items, serviceID)
		label := LabelAdd
		if added {
			label = LabelAdded
		}
		v.Buttons = append(v.Buttons, ButtonState{ServiceID: serviceID, Added: added, Label: label})
	}
	return v
}
