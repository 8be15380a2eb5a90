package objserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openfabric/pipeliner/internal/models"
)

// Pipeliner is the objective dispatch surface of the orchestrator.
type Pipeliner interface {
	Filter(ctx context.Context, obj *models.FilteringObjective) error
	Forward(ctx context.Context, obj *models.ForwardingObjective) error
	Next(ctx context.Context, obj *models.NextObjective) error
}

// Server accepts objectives over HTTP. A 202 means the objective was
// admitted into the pipeline; its final outcome is asynchronous and shows
// up on the device, not in the response.
type Server struct {
	ppl Pipeliner
}

func NewServer(ppl Pipeliner) *Server {
	return &Server{ppl: ppl}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/objectives/filter", s.handleFilter)
	mux.HandleFunc("POST /v1/objectives/forward", s.handleForward)
	mux.HandleFunc("POST /v1/objectives/next", s.handleNext)
	return mux
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req := filterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	op, err := operationToModel(req.Op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filterType := models.FilterPermit
	if req.Type == "deny" {
		filterType = models.FilterDeny
	}
	key, err := criterionToModel(req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conditions, err := criteriaToModel(req.Conditions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	obj := &models.FilteringObjective{
		AppID:      req.AppID,
		Op:         op,
		Type:       filterType,
		Key:        key,
		Conditions: conditions,
	}
	s.respond(w, s.ppl.Filter(r.Context(), obj))
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req := forwardRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	op, err := operationToModel(req.Op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	flag := models.ForwardSpecific
	if req.Flag == "versatile" {
		flag = models.ForwardVersatile
	}
	selector, err := criteriaToModel(req.Selector)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	obj := &models.ForwardingObjective{
		AppID:     req.AppID,
		Op:        op,
		Flag:      flag,
		Selector:  selector,
		NextID:    req.NextID,
		Priority:  req.Priority,
		Permanent: req.Permanent,
	}
	s.respond(w, s.ppl.Forward(r.Context(), obj))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req := nextRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	op, err := operationToModel(req.Op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	treatments := make([]models.TrafficTreatment, 0, len(req.Treatments))
	for _, t := range req.Treatments {
		treatments = append(treatments, treatmentToModel(t))
	}
	obj := &models.NextObjective{
		AppID:      req.AppID,
		Op:         op,
		ID:         req.ID,
		Type:       nextTypeToModel(req.Type),
		Treatments: treatments,
	}
	s.respond(w, s.ppl.Next(r.Context(), obj))
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, models.ErrGroupMissing):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, models.ErrUnsupportedObjective),
		errors.Is(err, models.ErrUnsupportedCondition),
		errors.Is(err, models.ErrUnsupportedMatch):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	log.Debug().Err(err).Msgf("objective rejected with status %d", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
