package clientmeta

import "strings"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceCLI     = "cli"
	Unknown       = "unknown"
)

type rule struct {
	token string
	name  string
}

// Order matters: Edge and Opera carry "Chrome", Chrome carries "Safari".
var browserRules = []rule{
	{"pinvault-cli", "PinVault CLI"},
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"crios/", "Chrome"},
	{"safari/", "Safari"},
	{"grpc-go/", "gRPC"},
	{"curl/", "curl"},
}

var osRules = []rule{
	{"windows", "Windows"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"android", "Android"},
	{"mac os x", "macOS"},
	{"macintosh", "macOS"},
	{"darwin", "macOS"},
	{"cros ", "ChromeOS"},
	{"linux", "Linux"},
}

// ParseUserAgent makes a best-effort guess at device type, browser and OS.
func ParseUserAgent(ua string) (device, browser, os string) {
	if ua == "" {
		return Unknown, Unknown, Unknown
	}
	l := strings.ToLower(ua)

	browser = match(l, browserRules)
	os = match(l, osRules)

	switch {
	case strings.Contains(l, "ipad") || (strings.Contains(l, "android") && !strings.Contains(l, "mobile")):
		device = DeviceTablet
	case strings.Contains(l, "mobile") || strings.Contains(l, "iphone"):
		device = DeviceMobile
	case strings.Contains(l, "pinvault-cli") || strings.Contains(l, "grpc-go/") || strings.Contains(l, "curl/"):
		device = DeviceCLI
	default:
		device = DeviceDesktop
	}
	return device, browser, os
}

func match(l string, rules []rule) string {
	for _, r := range rules {
		if strings.Contains(l, r.token) {
			return r.name
		}
	}
	return Unknown
}
