package web

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

const clientIDCookieName = "flexray-client-id"

// getClientID returns a stable per-browser identifier via a cookie,
// minting one on first visit.
func getClientID(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(clientIDCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var randomBytes [16]byte
	if _, err := rand.Read(randomBytes[:]); err != nil {
		identifier := r.RemoteAddr
		http.SetCookie(w, &http.Cookie{Name: clientIDCookieName, Value: identifier, Path: "/"})
		return identifier
	}
	identifier := hex.EncodeToString(randomBytes[:])
	http.SetCookie(w, &http.Cookie{Name: clientIDCookieName, Value: identifier, Path: "/"})
	return identifier
}
