package main

import (
	"os"

	"github.com/CompliTrack/CompliTrack/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
