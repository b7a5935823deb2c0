package radar

import "fmt"

// ClientInfo records how the client reaches the server. Exactly one
// transport selector is set; it is written at connect time and read-only
// afterwards.
type ClientInfo struct {
	IPAddress        string `json:"ip_address,omitempty"`
	TCPPort          int    `json:"tcp_port,omitempty"`
	SerialPort       string `json:"serial_port,omitempty"`
	OverrideBaudrate int    `json:"override_baudrate,omitempty"`
	USBDevice        string `json:"usb_device,omitempty"`
	Mock             bool   `json:"mock,omitempty"`
}

// Validate checks that exactly one transport is selected.
func (ci ClientInfo) Validate() error {
	n := 0
	if ci.IPAddress != "" {
		n++
	}
	if ci.SerialPort != "" {
		n++
	}
	if ci.USBDevice != "" {
		n++
	}
	if ci.Mock {
		n++
	}
	if n != 1 {
		return fmt.Errorf("exactly one of ip_address, serial_port, usb_device, mock must be set, got %d", n)
	}
	if ci.OverrideBaudrate != 0 && ci.SerialPort == "" {
		return fmt.Errorf("override_baudrate requires serial_port")
	}
	return nil
}

// SensorInfo describes one sensor slot on the server.
type SensorInfo struct {
	Connected bool   `json:"connected"`
	Serial    string `json:"serial,omitempty"`
}

// ServerInfo is the server handshake response: firmware provenance and
// the attached sensors. Set once at connect, read-only afterwards.
type ServerInfo struct {
	RSSVersion     string       `json:"rss_version"`
	SensorName     string       `json:"sensor"`
	SensorCount    int          `json:"sensor_count"`
	TicksPerSecond int          `json:"ticks_per_second"`
	HardwareName   string       `json:"hw,omitempty"`
	MaxBaudrate    int          `json:"max_baudrate,omitempty"`
	SensorInfos    []SensorInfo `json:"sensor_infos,omitempty"`
}

// ConnectedSensors returns the ids (1-based) of the attached sensors.
func (si ServerInfo) ConnectedSensors() []int {
	var ids []int
	for i, info := range si.SensorInfos {
		if info.Connected {
			ids = append(ids, i+1)
		}
	}
	return ids
}

// HasSensor reports whether the given sensor id is attached.
func (si ServerInfo) HasSensor(id int) bool {
	if id < 1 || id > len(si.SensorInfos) {
		return false
	}
	return si.SensorInfos[id-1].Connected
}
