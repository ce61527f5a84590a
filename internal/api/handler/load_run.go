package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/api/request"
	"github.com/edvin/warehouse/internal/api/response"
	"github.com/edvin/warehouse/internal/core"
	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/platform"
)

type LoadRun struct {
	svc *core.LoadRunService
}

func NewLoadRun(svc *core.LoadRunService) *LoadRun {
	return &LoadRun{svc: svc}
}

// Create records a run and starts its workflow. The run is returned in the
// pending state with 202.
func (h *LoadRun) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateLoadRun
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	run := &model.LoadRun{
		ID:                platform.NewID(),
		ClusterIdentifier: req.ClusterIdentifier,
		Bucket:            req.Bucket,
		Key:               req.ObjectKey(),
		LocalPath:         req.LocalPath,
		Status:            model.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.svc.Create(r.Context(), run); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("run_id", run.ID).Msg("create load run")
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, run)
}

func (h *LoadRun) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, run)
}

func (h *LoadRun) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseList(r)

	runs, err := h.svc.List(r.Context(), core.ListParams{
		ClusterIdentifier: params.ClusterIdentifier,
		Status:            params.Status,
		Limit:             params.Limit,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteList(w, http.StatusOK, runs, len(runs))
}
