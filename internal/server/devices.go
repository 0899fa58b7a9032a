package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/devices"
	"github.com/danielgtaylor/huma/v2"
)

// registerDeviceRoutes sets up the device discovery endpoints.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Enumerate capture devices and the backend tier each qualifies for",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*DeviceListResponse, error) {
		infos, err := devices.List()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to enumerate devices", err)
		}

		list := make([]DeviceInfo, 0, len(infos))
		for _, info := range infos {
			list = append(list, deviceToAPI(info))
		}

		return &DeviceListResponse{
			Body: DeviceListData{
				Devices: list,
				Count:   len(list),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-device",
		Method:      http.MethodGet,
		Path:        "/api/devices/{path}",
		Summary:     "Probe Device",
		Description: "Probe one device node by its base name, e.g. video0",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct {
		Path string `path:"path" example:"video0" doc:"Device node base name under /dev"`
	}) (*struct{ Body DeviceInfo }, error) {
		info, err := devices.Probe("/dev/" + input.Path)
		if err != nil {
			return nil, huma.Error404NotFound("device not found", err)
		}
		out := deviceToAPI(info)
		return &struct{ Body DeviceInfo }{Body: out}, nil
	})
}

// deviceToAPI converts a probed device to its API representation.
func deviceToAPI(info devices.Info) DeviceInfo {
	sizes := make([]string, 0, len(info.FrameSizes))
	for _, fs := range info.FrameSizes {
		sizes = append(sizes, fmt.Sprintf("%dx%d", fs.Width, fs.Height))
	}

	controls := make([]string, 0, len(info.Controls))
	for _, ctrl := range info.Controls {
		controls = append(controls, ctrl.Name)
	}
	sort.Strings(controls)

	return DeviceInfo{
		Path:       info.Path,
		Name:       info.Name,
		Generation: camera.Classify(info).String(),
		MaxZoom:    info.MaxZoom(),
		FrameSizes: sizes,
		Controls:   controls,
	}
}
