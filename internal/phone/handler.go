package phone

import (
	"encoding/json"
	"net/http"
)

// FormatResponse is returned by Handler.
type FormatResponse struct {
	Normalized  string `json:"normalized"`
	Formatted   string `json:"formatted"`
	Valid       bool   `json:"valid"`
	Placeholder string `json:"placeholder"`
}

// Handler serves GET ?value=&country= with the masked number. country
// falls back to defaultCode.
func Handler(defaultCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("country")
		if code == "" {
			code = defaultCode
		}
		value := r.URL.Query().Get("value")
		normalized := Normalize(value, code)
		resp := FormatResponse{
			Normalized:  normalized,
			Formatted:   Format(normalized),
			Valid:       IsValid(normalized),
			Placeholder: Placeholder(code),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
