package main

import (
	cmd "github.com/smarthealth/medquery/cmd/medquery"
	"github.com/smarthealth/medquery/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting medquery")
	cmd.Execute()
}
