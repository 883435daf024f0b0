package main

import (
	"os"
	_ "time/tzdata"

	"vocab-quiz-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
