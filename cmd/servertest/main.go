package main

import (
	"github.com/studyarena/pkarena/internal/app/servertest"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	logging.Fatal("PK server exited: ", zap.Error(
		servertest.NewServer().Start(),
	))
}
