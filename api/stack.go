package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// newHTTPHandlerStack wraps the handler with CORS and virtual host validation.
func newHTTPHandlerStack(srv http.Handler, cors []string, vhosts []string) http.Handler {
	handler := newCorsHandler(srv, cors)
	return newVHostHandler(vhosts, handler)
}

func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	// CORS disabled unless origins configured
	if len(allowedOrigins) == 0 {
		return srv
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})

	return c.Handler(srv)
}

// virtualHostHandler rejects requests whose Host header is neither an IP address
// nor one of the configured virtual hosts, to prevent DNS rebinding.
type virtualHostHandler struct {
	vhosts map[string]struct{}
	next   http.Handler
}

func newVHostHandler(vhosts []string, next http.Handler) http.Handler {
	vhostMap := make(map[string]struct{})
	for _, allowedHost := range vhosts {
		vhostMap[strings.ToLower(allowedHost)] = struct{}{}
	}

	return &virtualHostHandler{vhostMap, next}
}

func (h *virtualHostHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// browsers always set the Host header
	if r.Host == "" {
		h.next.ServeHTTP(w, r)
		return
	}

	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}

	if ipAddr := net.ParseIP(host); ipAddr != nil {
		h.next.ServeHTTP(w, r)
		return
	}

	if _, exist := h.vhosts["*"]; exist {
		h.next.ServeHTTP(w, r)
		return
	}

	if _, exist := h.vhosts[strings.ToLower(host)]; exist {
		h.next.ServeHTTP(w, r)
		return
	}

	http.Error(w, "invalid host specified", http.StatusForbidden)
}
