package bootstrap

import "go.uber.org/zap"

func newLogger(envName string) (*zap.Logger, error) {
	if envName == ProductionEnvironmentName {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
