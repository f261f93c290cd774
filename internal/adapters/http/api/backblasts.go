package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	service "github.com/f3peakcity/f3-bot/internal/app"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/types"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

const maxBodyBytes = 1 << 20

// backblastRequest is the payload the submission form posts.
type backblastRequest struct {
	ID          string     `json:"id" validate:"omitempty,max=128"`
	Date        string     `json:"date" validate:"required,datetime=2006-01-02"`
	AO          string     `json:"ao" validate:"max=256"`
	AOID        string     `json:"ao_id" validate:"max=64"`
	Q           string     `json:"q"`
	QID         string     `json:"q_id"`
	Pax         []string   `json:"pax" validate:"eqfield=PaxIDs"`
	PaxIDs      []string   `json:"pax_ids" validate:"dive,required"`
	FNGs        []string   `json:"fngs" validate:"eqfield=FNGIDs"`
	FNGIDs      []string   `json:"fng_ids" validate:"dive,required"`
	PaxNoSlack  string     `json:"pax_no_slack"`
	NVisiting   countField `json:"n_visiting_pax"`
	Summary     string     `json:"summary"`
	Submitter   string     `json:"submitter"`
	SubmitterID string     `json:"submitter_id" validate:"required"`
	TeamID      string     `json:"team_id"`
	StoreDate   string     `json:"store_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// countField accepts a JSON number or the free text typed into the form,
// where "10+" means 10.
type countField int

func (c *countField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*c = countField(max(int(f), 0))
		return nil
	}
	*c = countField(model.ParseCount(s))
	return nil
}

func (r *backblastRequest) toSubmission(now time.Time) (model.Submission, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return model.Submission{}, err
	}
	recorded := now.UTC()
	if r.StoreDate != "" {
		if recorded, err = time.Parse(time.RFC3339, r.StoreDate); err != nil {
			return model.Submission{}, fmt.Errorf("store_date: %w", err)
		}
		recorded = recorded.UTC()
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return model.Submission{
		ID:                       id,
		EventDate:                date,
		EventDateOriginal:        date,
		VenueLabel:               strings.TrimSpace(r.AO),
		VenueChannelID:           strings.TrimSpace(r.AOID),
		OrganizerName:            r.Q,
		OrganizerID:              r.QID,
		ParticipantNames:         r.Pax,
		ParticipantIDs:           r.PaxIDs,
		NewParticipantNames:      r.FNGs,
		NewParticipantIDs:        r.FNGIDs,
		UnregisteredParticipants: r.PaxNoSlack,
		VisitingCount:            int(r.NVisiting),
		Summary:                  r.Summary,
		SubmittedByName:          r.Submitter,
		SubmittedByID:            r.SubmitterID,
		TeamID:                   r.TeamID,
		RecordedAt:               recorded,
	}, nil
}

// BackblastHandler accepts backblast submissions.
type BackblastHandler struct {
	ingest   Ingest
	validate *validator.Validate
	now      func() time.Time
	log      logger.Logger
}

// NewBackblastHandler creates a new backblast handler.
func NewBackblastHandler(ingest Ingest, now func() time.Time, log logger.Logger) *BackblastHandler {
	return &BackblastHandler{
		ingest:   ingest,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      now,
		log:      log,
	}
}

// HandlePostBackblast handles POST /backblasts requests.
func (h *BackblastHandler) HandlePostBackblast(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_backblast"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req backblastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := req.toSubmission(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.ingest.Submit(r.Context(), sub)
	switch {
	case errors.Is(err, service.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "backpressure", WrapKind(op, ErrBackpressure, err))
	case err != nil:
		h.log.Error(r.Context(), "submit failed", logger.String("backblast_id", sub.ID), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case duplicate:
		writeJSON(w, http.StatusOK, types.Ack{Status: types.AckDuplicate, ID: sub.ID, Duplicate: true})
	default:
		writeJSON(w, http.StatusAccepted, types.Ack{Status: types.AckAccepted, ID: sub.ID})
	}
}
