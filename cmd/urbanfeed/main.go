package main

import (
	"os"

	"github.com/buketp/UrbanFeed/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
