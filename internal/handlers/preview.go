package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"openroom/internal/decode"
	"openroom/internal/recipe"
)

// maxRecipeBytes bounds the POSTed recipe body.
const maxRecipeBytes = 1 << 20

// GetPreview renders a preview. GET renders the unadjusted image; POST may
// carry an edit recipe as its JSON body.
//
// Query parameters: assetId and path are required, maxDimension is optional.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	assetID := q.Get("assetId")
	if assetID == "" {
		writeJSONError(w, "assetId is required", http.StatusBadRequest)
		return
	}

	maxDimension := 0
	if v := q.Get("maxDimension"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "Invalid maxDimension", http.StatusBadRequest)
			return
		}
		maxDimension = n
	}

	fullPath, ok := h.resolvePath(w, q.Get("path"))
	if !ok {
		return
	}
	if !checkFile(w, fullPath) {
		return
	}

	rec, err := readRecipe(w, r)
	if err != nil {
		writeJSONError(w, "Invalid recipe: "+err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.previews.RenderPreview(r.Context(), assetID, fullPath, maxDimension, rec)
	if err != nil {
		writeRenderError(w, err)
		return
	}

	writePNG(w, data, "no-store")
}

// readRecipe decodes the request body. An empty body yields a nil recipe.
func readRecipe(w http.ResponseWriter, r *http.Request) (*recipe.EditRecipe, error) {
	if r.Method != http.MethodPost || r.Body == nil {
		return nil, nil
	}

	var rec recipe.EditRecipe
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecipeBytes)).Decode(&rec)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func writeRenderError(w http.ResponseWriter, err error) {
	var decodeErr *decode.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, "Request cancelled", http.StatusServiceUnavailable)
	default:
		log.Error("render failed: %v", err)
		writeJSONError(w, "Render failed", http.StatusInternalServerError)
	}
}
