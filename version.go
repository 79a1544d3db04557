package chancellor

import _ "embed"

// Version is the release of the chancellor module.
//
//go:embed VERSION
var Version string
