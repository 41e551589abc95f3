package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/agentdesk/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	if os.Getenv("AGENTDESK_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
