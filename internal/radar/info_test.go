package radar

import "testing"

func TestClientInfoValidate(t *testing.T) {
	tests := []struct {
		name    string
		info    ClientInfo
		wantErr bool
	}{
		{"tcp", ClientInfo{IPAddress: "192.168.0.5"}, false},
		{"serial", ClientInfo{SerialPort: "/dev/ttyUSB0"}, false},
		{"serial with override", ClientInfo{SerialPort: "/dev/ttyUSB0", OverrideBaudrate: 115200}, false},
		{"usb", ClientInfo{USBDevice: "0483:a41d"}, false},
		{"mock", ClientInfo{Mock: true}, false},
		{"nothing", ClientInfo{}, true},
		{"tcp and serial", ClientInfo{IPAddress: "192.168.0.5", SerialPort: "/dev/ttyUSB0"}, true},
		{"override without serial", ClientInfo{IPAddress: "192.168.0.5", OverrideBaudrate: 115200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerInfoSensors(t *testing.T) {
	si := ServerInfo{SensorInfos: []SensorInfo{
		{Connected: true},
		{Connected: false},
		{Connected: true},
	}}

	got := si.ConnectedSensors()
	want := []int{1, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ConnectedSensors() = %v, want %v", got, want)
	}

	if !si.HasSensor(1) || si.HasSensor(2) || !si.HasSensor(3) {
		t.Error("HasSensor gave wrong answers for attached sensors")
	}
	if si.HasSensor(0) || si.HasSensor(4) {
		t.Error("HasSensor should be false outside the slot range")
	}
}
