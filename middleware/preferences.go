package middleware

import (
	"net/http"
	"time"
)

const tableModeCookieName = "diacates_table_mode"

// Preferences are per-browser display settings.
type Preferences struct {
	TableMode bool
}

func ReadPreferences(r *http.Request) Preferences {
	cookie, err := r.Cookie(tableModeCookieName)
	if err != nil {
		return Preferences{}
	}
	return Preferences{TableMode: cookie.Value == "1"}
}

func WritePreferences(w http.ResponseWriter, p Preferences) {
	value := "0"
	if p.TableMode {
		value = "1"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tableModeCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
