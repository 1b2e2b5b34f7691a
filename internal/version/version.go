package version

import (
	"fmt"
)

// Set at build time with -ldflags "-X github.com/al002/psmoveclient/internal/version.Version=..."
var Version = "unknown"

var (
	DefaultUserAgent string
)

func init() {
	const (
		namespace   = "al002"
		packageName = "psmoveclient"
	)

	// https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/User-Agent#library_and_net_tool_ua_strings
	DefaultUserAgent = fmt.Sprintf(
		"%v-%v/%v",
		namespace,
		packageName,
		Version,
	)
}
