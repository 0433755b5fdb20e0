package handlers

import "net/http"

// GetThumbnail returns the stored thumbnail for an asset, rendering it on
// first request. Undecodable files get a placeholder rather than an error.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	assetID := q.Get("assetId")
	if assetID == "" {
		writeJSONError(w, "assetId is required", http.StatusBadRequest)
		return
	}

	fullPath, ok := h.resolvePath(w, q.Get("path"))
	if !ok {
		return
	}

	log.Debug("thumbnail requested: %s (%s)", assetID, fullPath)

	data, err := h.previews.Thumbnail(r.Context(), assetID, fullPath)
	if err != nil {
		writeRenderError(w, err)
		return
	}

	writePNG(w, data, "public, max-age=86400")
}
