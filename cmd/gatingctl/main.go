package main

import (
	"os"

	"course_gating_backend/cmd/gatingctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
