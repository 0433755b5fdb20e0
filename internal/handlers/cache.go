package handlers

import "net/http"

// ResetCache drops every cached preview. Clients call it when they open a
// new folder.
func (h *Handlers) ResetCache(w http.ResponseWriter, _ *http.Request) {
	h.previews.ClearCache()
	log.Info("preview cache cleared")
	writeJSONStatus(w, "ok")
}
