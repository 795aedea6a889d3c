// Package main is the entry point for the rag-ask question answering service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/rag-ask/cmd/rag-ask/app"
)

func main() {
	app.NewApp().Run()
}
