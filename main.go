package main

import (
	"golang-scheduled-task/cmd"
	"log"
	_ "time/tzdata"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("could not start application: %v", err)
	}
}
