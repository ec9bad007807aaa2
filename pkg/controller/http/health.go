package http

import (
	"net/http"

	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, &model.HealthStatus{
		Status:  "healthy",
		Service: "herder",
		Version: types.Version,
	})
}
