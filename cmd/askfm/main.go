package main

import (
	"log"

	"github.com/KhaledSayed04/Askfm-Clone/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
