package server

import (
	"context"
	"net/http"
	"time"

	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/danielgtaylor/huma/v2"
)

// registerLogRoutes registers the buffered log history endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log History",
		Description: "Read the in-memory buffer of recent log entries",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*LogsResponse, error) {
		out := LogsData{Entries: []LogEntryData{}}

		if buffer := logging.GetBuffer(); buffer != nil {
			entries := buffer.Entries()
			out.Entries = make([]LogEntryData, 0, len(entries))
			for _, entry := range entries {
				out.Entries = append(out.Entries, LogEntryData{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				})
			}
		}

		out.Count = len(out.Entries)
		return &LogsResponse{Body: out}, nil
	})
}
