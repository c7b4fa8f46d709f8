package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/branchout/internal/api/models"
	"github.com/smazurov/branchout/internal/output"
)

func (s *Server) registerFilterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Output Status",
		Description: "Current lifecycle state of the branch output",
		Tags:        []string{"filter"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.statusData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "activate-filter",
		Method:      http.MethodPost,
		Path:        "/api/filter/activate",
		Summary:     "Activate Filter",
		Description: "Allow the filter to start output with its current settings",
		Tags:        []string{"filter"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		s.node.Activate()
		return &models.StatusResponse{Body: s.statusData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-filter-enabled",
		Method:      http.MethodPut,
		Path:        "/api/filter/enabled",
		Summary:     "Show or Hide Filter",
		Description: "Toggle the filter. A hidden filter stops its output on the next tick.",
		Tags:        []string{"filter"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.EnabledRequest) (*models.StatusResponse, error) {
		s.node.SetEnabled(input.Body.Enabled)
		return &models.StatusResponse{Body: s.statusData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-network",
		Method:      http.MethodPut,
		Path:        "/api/network",
		Summary:     "Simulate Network",
		Description: "Take the simulated network down or bring it back",
		Tags:        []string{"simulation"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.NetworkRequest) (*models.StatusResponse, error) {
		s.node.SetNetwork(input.Body.Up)
		return &models.StatusResponse{Body: s.statusData()}, nil
	})
}

func (s *Server) statusData() models.StatusData {
	return toStatusData(s.node.Status(), s.node.Enabled())
}

func toStatusData(st output.Status, enabled bool) models.StatusData {
	data := models.StatusData{
		Filter:         st.Filter,
		State:          string(st.State),
		Enabled:        enabled,
		FilterActive:   st.FilterActive,
		SessionActive:  st.SessionActive,
		StoredRev:      st.StoredRev,
		ActiveRev:      st.ActiveRev,
		Width:          st.Width,
		Height:         st.Height,
		OutputType:     st.OutputType,
		AudioMode:      st.AudioMode,
		BufferedFrames: st.BufferedFrames,
		LastError:      st.LastError,
	}
	if !st.ConnectAt.IsZero() {
		connectAt := st.ConnectAt
		data.ConnectAt = &connectAt
	}
	return data
}
