package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framegate/internal/api/models"
	"github.com/smazurov/framegate/internal/metadata"
)

func (s *Server) registerOutputRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-output",
		Method:      http.MethodGet,
		Path:        "/api/output",
		Summary:     "Output status",
		Description: "Gate state, timestamp offset, pre-roll occupancy and the active detection recording",
		Tags:        []string{"output"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OutputStatusResponse, error) {
		return &models.OutputStatusResponse{Body: s.gate.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-output",
		Method:      http.MethodPost,
		Path:        "/api/output/toggle",
		Summary:     "Toggle output",
		Description: "Flip the enable flag. Re-enabled output resumes at the next keyframe",
		Tags:        []string{"output"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ToggleResponse, error) {
		s.gate.Signal()
		return &models.ToggleResponse{Body: models.ToggleData{Enabled: s.gate.Enabled()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "notify-detection",
		Method:        http.MethodPost,
		Path:          "/api/detections",
		Summary:       "Signal detection",
		Description:   "Start or extend a detection recording and arm the webhook for the next frame",
		Tags:          []string{"detections"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 422},
	}, func(_ context.Context, input *models.DetectionRequest) (*models.DetectionResponse, error) {
		s.gate.NotifyDetection(input.Body.SequenceID)

		resp := &models.DetectionResponse{Body: models.DetectionData{SequenceID: input.Body.SequenceID}}
		if rec := s.gate.Status().Recording; rec != nil {
			resp.Body.Recording = rec.Path
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "queue-metadata",
		Method:        http.MethodPost,
		Path:          "/api/metadata",
		Summary:       "Queue metadata",
		Description:   "Queue one metadata entry, written alongside the next emitted frame. Field order is preserved",
		Tags:          []string{"output"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401},
	}, func(_ context.Context, input *models.MetadataRequest) (*models.MetadataResponse, error) {
		entry, err := metadata.DecodeJSON(input.RawBody)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid metadata entry", err)
		}
		s.gate.MetadataReady(entry)
		return &models.MetadataResponse{Body: models.MetadataData{Fields: len(entry)}}, nil
	})
}
