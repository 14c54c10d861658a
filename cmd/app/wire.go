//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/fittrack/internal/bootstrap"
	"github.com/yanqian/fittrack/internal/domain/auth"
	"github.com/yanqian/fittrack/internal/domain/exercise"
	"github.com/yanqian/fittrack/internal/infra/config"
	httpiface "github.com/yanqian/fittrack/internal/interface/http"
	"github.com/yanqian/fittrack/pkg/logger"
	"github.com/yanqian/fittrack/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.New,
		provideAuthConfig,
		provideDatabase,
		provideUserStore,
		provideAuthRepository,
		provideSessionStore,
		provideExerciseRepository,
		auth.NewService,
		exercise.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
