package api

import (
	"net/http"
	"net/url"

	"karsync/internal/models"
)

func (h *Handlers) GetRemotes(w http.ResponseWriter, r *http.Request) {
	remotes, err := h.transfers.ListRemotes(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list remotes", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, remotes, "")
}

func (h *Handlers) GetFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	source := query.Get("source")
	if source == "" && h.config != nil {
		source = h.config.GetArchive().DefaultSource
	}
	if source == "" {
		h.writeError(w, http.StatusBadRequest, "source is required", nil)
		return
	}

	remote := query.Get("remote")
	if remote == "" && h.config != nil {
		remote = h.config.GetAuth().ProfileName
	}

	files, err := h.transfers.ListFiles(r.Context(), source, remote, selectionFromQuery(query))
	if err != nil {
		h.writeServiceError(w, "Failed to list files", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, files, "")
}

// selectionFromQuery reads repeated select parameters. Without any the
// whole folder is selected; empty values are ignored.
func selectionFromQuery(query url.Values) models.Selection {
	values, ok := query["select"]
	if !ok {
		return models.SelectAll()
	}

	paths := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			paths = append(paths, v)
		}
	}
	return models.SelectOnly(paths)
}
