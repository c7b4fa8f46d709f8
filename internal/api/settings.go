package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/branchout/internal/api/models"
	"github.com/smazurov/branchout/internal/node"
	"github.com/smazurov/branchout/internal/settings"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/api/settings",
		Summary:     "Get Settings",
		Description: "Current filter settings with stream key and password redacted",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SettingsResponse, error) {
		return &models.SettingsResponse{
			Body: models.SettingsBody{Settings: s.node.Settings().Redact()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "replace-settings",
		Method:      http.MethodPut,
		Path:        "/api/settings",
		Summary:     "Replace Settings",
		Description: "Replace the filter settings. Redacted values keep the stored secret.",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.SettingsRequest) (*models.SettingsUpdateResponse, error) {
		current := s.node.Settings()
		next := settings.Data(input.Body.Settings).Clone()
		next.RestoreSecrets(current)
		return s.apply(next), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "merge-settings",
		Method:      http.MethodPatch,
		Path:        "/api/settings",
		Summary:     "Merge Settings",
		Description: "Overwrite the given keys and keep all others",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.SettingsRequest) (*models.SettingsUpdateResponse, error) {
		current := s.node.Settings()
		patch := settings.Data(input.Body.Settings).Clone()
		patch.RestoreSecrets(current)

		next := current.Clone()
		next.Apply(patch)
		return s.apply(next), nil
	})
}

func (s *Server) apply(d settings.Data) *models.SettingsUpdateResponse {
	changed := s.node.ApplySettings(d, node.OriginAPI)
	return &models.SettingsUpdateResponse{
		Body: models.SettingsUpdateData{
			Changed:  changed,
			Settings: s.node.Settings().Redact(),
		},
	}
}
