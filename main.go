package main

import (
	"os"

	"github.com/sysinv/sysinv/cmd"
	log "github.com/sysinv/sysinv/pkg/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
