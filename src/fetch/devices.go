package fetch

import (
	"context"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/models"
)

// DeviceLister is the part of the API client the device fetch needs.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// DeviceWorker lists the devices of the directory and keeps only those
// with the given function code.
func DeviceWorker(lister DeviceLister, functionID int, timeout time.Duration) *Worker[models.Device] {
	return &Worker[models.Device]{
		Name:    "devices",
		Timeout: timeout,
		Fetch:   lister.ListDevices,
		Filter: func(d models.Device) bool {
			return d.DeviceFunctionID == functionID
		},
	}
}
