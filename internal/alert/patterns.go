package alert

import (
	"regexp"
	"sort"
)

// secretPattern is a built-in detector for one kind of sensitive value.
type secretPattern struct {
	name  string
	re    *regexp.Regexp
	label string // placeholder prefix: [IPV4:hash], [EMAIL:hash], ...
}

var (
	ipv4Regex = regexp.MustCompile(`\b(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)

	// Full and compressed forms; the leading "::" forms need at least one group.
	ipv6Regex = regexp.MustCompile(`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}|(?:[0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}|(?:[0-9a-fA-F]{1,4}:){1,5}(?::[0-9a-fA-F]{1,4}){1,2}|(?:[0-9a-fA-F]{1,4}:){1,4}(?::[0-9a-fA-F]{1,4}){1,3}|::(?:[0-9a-fA-F]{1,4}:){0,5}[0-9a-fA-F]{1,4}`)

	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	awsAccessKeyRegex = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)

	// api_key=..., token: ..., password=...
	apiKeyRegex = regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|token|secret|password|passwd|pwd)["\s]*[:=]["\s]*[a-zA-Z0-9_\-]{8,}`)

	jwtRegex = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*\b`)

	privateKeyRegex = regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)

	macAddressRegex = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}(?:[0-9A-Fa-f]{2})\b`)

	creditCardRegex = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)

	uuidRegex = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
)

var builtinPatterns = map[string]secretPattern{
	"ipv4":        {name: "ipv4", re: ipv4Regex, label: "IPV4"},
	"ipv6":        {name: "ipv6", re: ipv6Regex, label: "IPV6"},
	"email":       {name: "email", re: emailRegex, label: "EMAIL"},
	"api_key":     {name: "api_key", re: apiKeyRegex, label: "SECRET"},
	"aws_key":     {name: "aws_key", re: awsAccessKeyRegex, label: "AWS_KEY"},
	"jwt":         {name: "jwt", re: jwtRegex, label: "JWT"},
	"private_key": {name: "private_key", re: privateKeyRegex, label: "PRIVATE_KEY"},
	"mac_address": {name: "mac_address", re: macAddressRegex, label: "MAC"},
	"credit_card": {name: "credit_card", re: creditCardRegex, label: "CC"},
	"uuid":        {name: "uuid", re: uuidRegex, label: "UUID"},
}

// DefaultPatterns is the set used when redaction is enabled without an
// explicit pattern list. uuid, mac_address and credit_card are opt-in
// because log ids trip them constantly.
func DefaultPatterns() []string {
	return []string{"ipv4", "ipv6", "email", "api_key", "aws_key", "jwt", "private_key"}
}

// PatternNames lists every built-in pattern name in sorted order.
func PatternNames() []string {
	names := make([]string, 0, len(builtinPatterns))
	for name := range builtinPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupPatterns resolves names, returning the unknown ones separately.
func lookupPatterns(names []string) ([]secretPattern, []string) {
	patterns := make([]secretPattern, 0, len(names))
	var unknown []string
	for _, name := range names {
		if p, ok := builtinPatterns[name]; ok {
			patterns = append(patterns, p)
		} else {
			unknown = append(unknown, name)
		}
	}
	return patterns, unknown
}
