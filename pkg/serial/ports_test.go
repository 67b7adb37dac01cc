package serial

import "testing"

func TestPortListed(t *testing.T) {
	ports := []string{"COM3", `\\.\COM12`, "/dev/ttyUSB0"}

	tests := []struct {
		name string
		want bool
	}{
		{"COM3", true},
		{"com3", true},
		{"COM12", true},
		{`\\.\com12`, true},
		{`\\.\COM3`, true},
		{"/dev/ttyUSB0", true},
		{"COM4", false},
		{"/dev/ttyUSB1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := portListed(ports, tt.name); got != tt.want {
				t.Errorf("portListed(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
