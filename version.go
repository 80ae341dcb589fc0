package botflow

// Version is overridden at build time with
// -ldflags "-X github.com/aretw0/botflow.Version=v1.2.3".
var Version = "dev"
