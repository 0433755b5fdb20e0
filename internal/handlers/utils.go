package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"openroom/internal/filesystem"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writePNG writes encoded image bytes.
func writePNG(w http.ResponseWriter, data []byte, cacheControl string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", cacheControl)
	if _, err := w.Write(data); err != nil {
		log.Debug("failed to write image response: %v", err)
	}
}

// resolvePath maps the path query parameter to a file on disk, writing the
// error response itself when it cannot.
func (h *Handlers) resolvePath(w http.ResponseWriter, raw string) (string, bool) {
	fullPath, err := filesystem.Resolve(h.libraryDir, raw)
	switch {
	case err == nil:
		return fullPath, true
	case errors.Is(err, filesystem.ErrOutsideRoot):
		log.Warn("rejected path outside library: %q", raw)
		writeJSONError(w, "Invalid path", http.StatusForbidden)
	case errors.Is(err, filesystem.ErrEmptyPath), errors.Is(err, filesystem.ErrRelativePath):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("failed to resolve path %q: %v", raw, err)
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
	}
	return "", false
}

// checkFile confirms fullPath is a readable regular file.
func checkFile(w http.ResponseWriter, fullPath string) bool {
	info, err := filesystem.StatWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, "File not found", http.StatusNotFound)
		} else {
			log.Error("failed to stat file %s: %v", fullPath, err)
			writeJSONError(w, "Failed to access file", http.StatusInternalServerError)
		}
		return false
	}
	if info.IsDir() {
		writeJSONError(w, "Path is a directory", http.StatusBadRequest)
		return false
	}
	return true
}
