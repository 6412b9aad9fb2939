package main

import (
	"os"

	"dupecheck/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
