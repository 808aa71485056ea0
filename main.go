// Command coronacaster forecasts cumulative COVID-19 cases with Bayesian growth models.
package main

import (
	"github.com/huangsam/coronacaster/cmd"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	defer iocache.CloseCaching()
	defer func() {
		if err := cmd.StopProfiling(); err != nil {
			contract.LogWarn("Cannot stop profiling", err)
		}
	}()

	if err := cmd.Execute(); err != nil {
		iocache.CloseCaching()
		contract.LogFatal("Cannot execute command", err)
	}
}
