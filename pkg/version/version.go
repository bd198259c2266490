package version

// Version is the semantic version of sysinv. It is overridden at build
// time via -ldflags.
var Version = "0.1.0"
