package transport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USBID identifies a USB device by vendor and product ID, as 4-digit hex strings.
type USBID struct {
	VID string
	PID string
}

func (id USBID) String() string {
	return fmt.Sprintf("%s:%s", strings.ToUpper(id.VID), strings.ToUpper(id.PID))
}

// Known devices. Both enumerate under the STMicroelectronics vendor ID.
var (
	// CurrentSourceUSBID is the HDR precision current source (VID 1155, PID 100).
	CurrentSourceUSBID = USBID{VID: "0483", PID: "0064"}

	// ShuntMonitorUSBID is the MetaShunt V2 (VID 1155, PID 22336).
	ShuntMonitorUSBID = USBID{VID: "0483", PID: "5740"}
)

// ErrDeviceNotFound is returned by Discover when no attached port matches.
var ErrDeviceNotFound = errors.New("device not found")

// Discover returns the name of the first serial port whose USB IDs match id.
func Discover(id USBID) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate ports: %w", err)
	}
	name, ok := matchPort(ports, id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return name, nil
}

func matchPort(ports []*enumerator.PortDetails, id USBID) (string, bool) {
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, id.VID) && strings.EqualFold(p.PID, id.PID) {
			return p.Name, true
		}
	}
	return "", false
}
