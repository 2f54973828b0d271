package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anstrom/netscope/internal/hosts"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		hostname string
		ports    []int
		want     hosts.DeviceType
	}{
		{"printer port", "10.0.0.9", "", []int{9100}, hosts.DevicePrinter},
		{"printer name", "10.0.0.9", "HP-Printer", nil, hosts.DevicePrinter},
		{"printer beats windows", "10.0.0.9", "", []int{445, 631}, hosts.DevicePrinter},
		{"router name", "10.0.0.9", "core-gateway", []int{80}, hosts.DeviceRouterFirewall},
		{"router address", "192.168.1.1", "", []int{22}, hosts.DeviceRouterFirewall},
		{"windows", "10.0.0.9", "desk", []int{3389}, hosts.DeviceWindowsPC},
		{"mac name", "10.0.0.9", "Alices-MacBook", nil, hosts.DeviceMacOSPC},
		{"mac ports", "10.0.0.9", "", []int{548}, hosts.DeviceMacOSPC},
		{"ssh alone counts as mac port", "10.0.0.9", "box", []int{22}, hosts.DeviceMacOSPC},
		{"linux server", "10.0.0.9", "linux-nas", []int{22}, hosts.DeviceLinuxServer},
		{"linux server by port", "10.0.0.9", "linux-box", []int{22, 8080}, hosts.DeviceLinuxServer},
		{"linux pc", "10.0.0.9", "linux-laptop", []int{22}, hosts.DeviceLinuxPC},
		{"android", "10.0.0.9", "android-1234", nil, hosts.DeviceAndroidMobile},
		{"ios", "10.0.0.9", "Bobs-iPhone", nil, hosts.DeviceIOSMobile},
		{"generic", "10.0.0.9", "", []int{80}, hosts.DeviceGeneric},
		{"nothing", "10.0.0.9", "", nil, hosts.DeviceGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ip, tt.hostname, tt.ports))
		})
	}
}

func TestClassifyOS(t *testing.T) {
	assert.Equal(t, hosts.DevicePrinter, classifyOS("HP LaserJet", "printer", "embedded"))
	assert.Equal(t, hosts.DeviceRouterFirewall, classifyOS("MikroTik RouterOS", "router", "RouterOS"))
	assert.Equal(t, hosts.DeviceWindowsPC, classifyOS("Microsoft Windows 11", "general purpose", "Windows"))
	assert.Equal(t, hosts.DeviceMacOSPC, classifyOS("Apple macOS 14", "general purpose", "Mac OS X"))
	assert.Equal(t, hosts.DeviceIOSMobile, classifyOS("Apple iOS 17", "phone", "iOS"))
	assert.Equal(t, hosts.DeviceAndroidMobile, classifyOS("Android 13", "phone", "Android"))
	assert.Equal(t, hosts.DeviceUnknown, classifyOS("Linux 5.X", "general purpose", "Linux"))
}
