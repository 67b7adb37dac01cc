package serial

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Description  string `json:"description"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ListPorts returns the names of the serial ports on the system, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// GetDetailedPortsList returns detailed information about available serial ports
func GetDetailedPortsList() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, portInfoFrom(d))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func portInfoFrom(d *enumerator.PortDetails) PortInfo {
	info := PortInfo{
		Name:  d.Name,
		Path:  AdjustPortName(d.Name),
		IsUSB: d.IsUSB,
	}
	if d.IsUSB {
		info.VID = d.VID
		info.PID = d.PID
		info.SerialNumber = d.SerialNumber
		info.Description = d.Product
	}
	return info
}

// IsPortAvailable reports whether the system lists portName. Names are
// compared case-insensitively and with the \\.\ prefix removed, so COM12 and
// \\.\com12 match.
func IsPortAvailable(portName string) bool {
	ports, err := serial.GetPortsList()
	if err != nil {
		return false
	}
	return portListed(ports, portName)
}

func portListed(ports []string, name string) bool {
	name = strings.TrimPrefix(name, `\\.\`)
	for _, port := range ports {
		if strings.EqualFold(strings.TrimPrefix(port, `\\.\`), name) {
			return true
		}
	}
	return false
}
