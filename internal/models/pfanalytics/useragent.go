package pfanalytics

import (
	"regexp"
	"strings"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	Unknown       = "Unknown"
)

var (
	mobileRegex = regexp.MustCompile(`(?i)Mobile|Android|iPhone|iPad`)
	tabletRegex = regexp.MustCompile(`(?i)Tablet`)
)

type uaRule struct {
	tokens []string
	name   string
}

// L'ordre compte: l'UA d'Edge contient aussi "Chrome", celui de Chrome "Safari"
var browserRules = []uaRule{
	{[]string{"Firefox"}, "Firefox"},
	{[]string{"Edg"}, "Edge"},
	{[]string{"Chrome"}, "Chrome"},
	{[]string{"Safari"}, "Safari"},
	{[]string{"Opera"}, "Opera"},
}

var osRules = []uaRule{
	{[]string{"Windows"}, "Windows"},
	{[]string{"Mac OS"}, "macOS"},
	{[]string{"Linux"}, "Linux"},
	{[]string{"Android"}, "Android"},
	{[]string{"iOS", "iPhone", "iPad"}, "iOS"},
}

// UserAgentInfo est la classification grossière d'un user-agent
type UserAgentInfo struct {
	Device  string
	Browser string
	OS      string
}

func ParseUserAgent(ua string) UserAgentInfo {
	device := DeviceDesktop
	switch {
	case mobileRegex.MatchString(ua):
		device = DeviceMobile
	case tabletRegex.MatchString(ua):
		device = DeviceTablet
	}

	return UserAgentInfo{
		Device:  device,
		Browser: firstMatch(ua, browserRules),
		OS:      firstMatch(ua, osRules),
	}
}

func firstMatch(ua string, rules []uaRule) string {
	for _, rule := range rules {
		for _, token := range rule.tokens {
			if strings.Contains(ua, token) {
				return rule.name
			}
		}
	}
	return Unknown
}
