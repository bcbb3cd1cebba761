package api

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"

	"socialgraph.relay/sgr/internal/docs"
)

// @Title: Event Stream
// @Route: GET /ws/events/{address}
// @Description: WebSocket stream of friend request and registration events for the address
// @Response: {"type": "friend_request.received", "data": {...}, "at": "..."} frames
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "address is not a valid public key")
		return
	}
	s.hub.ServeWS(w, r, address)
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<nav>{{range .List}}<a href="/docs?doc={{.}}">{{.}}</a> {{end}}</nav>
<h1>{{.Title}}</h1>
{{.Content}}
</body>
</html>
`))

// @Title: API Reference
// @Route: GET /docs?doc=...
// @Description: Rendered AsciiDoc reference for this API
// @Response: text/html page
func (s *Service) HandleDocs(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("doc")
	if name == "" {
		name = docs.DefaultDoc
	}

	doc, err := s.docs.Render(r.Context(), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, fmt.Sprintf("doc %s not found", name), http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("doc", name).Msg("Failed to render doc")
		http.Error(w, "Failed to render docs", http.StatusInternalServerError)
		return
	}
	list, _ := s.docs.List()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	if err := docsPage.Execute(w, struct {
		Title   string
		List    []string
		Content template.HTML
	}{doc.Title, list, template.HTML(doc.HTML)}); err != nil {
		s.logger.Debug().Err(err).Msg("write docs page")
	}
}
