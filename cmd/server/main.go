package main

import (
	"log"

	transporthttp "doseclock/internal/transport/http"
)

func main() {
	if err := transporthttp.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
