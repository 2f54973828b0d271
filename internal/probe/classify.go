package probe

import (
	"slices"
	"strings"

	"github.com/anstrom/netscope/internal/hosts"
)

var (
	printerPorts    = []int{631, 9100, 515}
	windowsPorts    = []int{135, 137, 138, 139, 445, 3389}
	macPorts        = []int{22, 548, 445}
	linuxSvcPorts   = []int{5000, 5001, 8080, 8000, 3000}
	commonRouterIPs = []string{"192.168.1.1", "192.168.0.1", "10.0.0.1"}

	routerWords      = []string{"router", "gateway", "firewall", "switch"}
	macWords         = []string{"macbook", "imac", "apple"}
	linuxServerWords = []string{"server", "nas", "ubuntu-server", "centos", "debian"}
	iosWords         = []string{"iphone", "ipad"}
)

// Classify guesses a device type from the address, hostname and open
// ports. Rules are checked in order and the first match wins.
func Classify(ip, hostname string, openPorts []int) hosts.DeviceType {
	name := strings.ToLower(hostname)

	switch {
	case anyPort(openPorts, printerPorts) || strings.Contains(name, "printer"):
		return hosts.DevicePrinter
	case containsWord(name, routerWords) || slices.Contains(commonRouterIPs, ip):
		return hosts.DeviceRouterFirewall
	case anyPort(openPorts, windowsPorts):
		return hosts.DeviceWindowsPC
	case containsWord(name, macWords) ||
		(anyPort(openPorts, macPorts) && !strings.Contains(name, "linux")):
		return hosts.DeviceMacOSPC
	case slices.Contains(openPorts, 22):
		if containsWord(name, linuxServerWords) || anyPort(openPorts, linuxSvcPorts) {
			return hosts.DeviceLinuxServer
		}
		return hosts.DeviceLinuxPC
	case strings.Contains(name, "android"):
		return hosts.DeviceAndroidMobile
	case containsWord(name, iosWords):
		return hosts.DeviceIOSMobile
	default:
		return hosts.DeviceGeneric
	}
}

// classifyOS maps an nmap OS guess onto a device type. It returns
// DeviceUnknown when the guess is not specific enough.
func classifyOS(osName, osType, osFamily string) hosts.DeviceType {
	name := strings.ToLower(osName)
	kind := strings.ToLower(osType)
	family := strings.ToLower(osFamily)

	switch {
	case kind == "printer":
		return hosts.DevicePrinter
	case kind == "router" || kind == "firewall" || kind == "switch" || kind == "wap":
		return hosts.DeviceRouterFirewall
	case family == "ios" || strings.Contains(name, "iphone"):
		return hosts.DeviceIOSMobile
	case family == "android" || strings.Contains(name, "android"):
		return hosts.DeviceAndroidMobile
	case family == "windows":
		return hosts.DeviceWindowsPC
	case family == "mac os x" || family == "macos" || strings.Contains(name, "macos"):
		return hosts.DeviceMacOSPC
	default:
		return hosts.DeviceUnknown
	}
}

func anyPort(open, wanted []int) bool {
	for _, p := range wanted {
		if slices.Contains(open, p) {
			return true
		}
	}
	return false
}

func containsWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
