package main

import (
	"log"

	"yashubustudio/citelink/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("citelink: %v", err)
	}
}
