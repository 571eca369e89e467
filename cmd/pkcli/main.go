package main

import (
	"github.com/studyarena/pkarena/internal/app/cli"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	app, err := cli.NewApp()
	if err != nil {
		logging.Fatal("failed to start: ", zap.Error(err))
	}
	if err := app.Run(); err != nil {
		logging.Fatal("client exited: ", zap.Error(err))
	}
}
