package cmd

// Version is set at build time via ldflags, for example:
// go build -ldflags "-X github.com/davidrg-mx/clubagent/cmd.Version=1.0.0"
var Version = "0.1.0"
