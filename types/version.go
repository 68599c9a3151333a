package types

// Version is the canonical snapfeed version.
// The CLI and the status endpoint both report this value.
const Version = "0.3.0"
