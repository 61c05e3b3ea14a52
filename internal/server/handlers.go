package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		name, _, _ := strings.Cut(tag, ",")
		return name
	})
	return v
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, schema.ErrorResponse{Error: msg, RequestID: logger.RequestID(r.Context())})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, schema.HealthResponse{
		Status:      "ok",
		Version:     s.opts.Version,
		ModelStatus: s.modelStatus(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.C(ctx)

	var req schema.PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	log.Info().Str("commit", req.CommitHash).Int("changed_files", len(req.ChangedFiles)).Msg("Prediction requested")

	change := s.describe(r, req)
	predictCtx := core.WithTelemetry(core.WithSuppressOutput(ctx), s.opts.Sink)
	set, err := core.PredictChange(predictCtx, s.cfg, s.mgr, s.opts.Model, change)
	if err != nil {
		log.Error().Err(err).Msg("Prediction failed")
		writeError(w, r, http.StatusInternalServerError, "prediction failed")
		return
	}

	selected := set.SelectedTests()
	elapsed := time.Since(start)
	s.opts.Sink.ObserveSelection(set.Len(), len(selected), s.cfg.CostPerTest, elapsed)

	log.Info().Int("selected", len(selected)).Int("tests", set.Len()).Dur("elapsed", elapsed).Msg("Prediction served")
	writeJSON(w, http.StatusOK, schema.PredictResponse{
		SelectedTests:    selected,
		PredictionTimeMs: float64(elapsed.Microseconds()) / 1000,
		ModelVersion:     set.ModelVersion,
		Degraded:         set.Degraded,
		RequestID:        logger.RequestID(ctx),
	})
}

// describe builds the change context of a request. Provider data is used
// when a fetcher is configured; files listed in the request take precedence.
func (s *Server) describe(r *http.Request, req schema.PredictRequest) schema.ChangeContext {
	change := schema.ChangeContext{CommitHash: req.CommitHash}
	if s.opts.Fetcher != nil {
		fetched, err := s.opts.Fetcher.FetchChange(r.Context(), s.cfg.CIProject, req.CommitHash)
		if err != nil {
			logger.C(r.Context()).Warn().Err(err).Msg("Cannot describe commit through provider, using request data")
		} else {
			change = fetched
		}
	}
	if len(req.ChangedFiles) > 0 {
		change.ChangedFiles = req.ChangedFiles
	}
	return change
}
