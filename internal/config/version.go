package config

// Version is the fluxtrace binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/fluxtrace/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
