package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/mosaicforge/gallerypress"
)

func main() {
	// A local .env is a convenience for development; deployed instances set
	// real environment variables.
	_ = godotenv.Load()

	cfg, err := gallerypress.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	app, err := gallerypress.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
