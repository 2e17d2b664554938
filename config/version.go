package config

// VersionString is overridden at build time via ldflags.
var VersionString = "dev"
