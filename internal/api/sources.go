package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/branchout/internal/api/models"
)

func (s *Server) registerSourceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/sources",
		Summary:     "List Sources",
		Description: "Sources known to the host. Their UUIDs are valid audio_source values.",
		Tags:        []string{"sources"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SourcesResponse, error) {
		sources := s.node.Sources()
		return &models.SourcesResponse{
			Body: models.SourcesData{Sources: sources, Count: len(sources)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resize-source",
		Method:      http.MethodPut,
		Path:        "/api/source/size",
		Summary:     "Resize Source",
		Description: "Change the filtered source resolution. A running output restarts at the new size.",
		Tags:        []string{"simulation"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.SourceSizeRequest) (*models.StatusResponse, error) {
		s.node.ResizeSource(input.Body.Width, input.Body.Height)
		return &models.StatusResponse{Body: s.statusData()}, nil
	})
}
