// main is the entry point of the pts CLI.
package main

import (
	"github.com/huangsam/pts/cmd"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)

	err := cmd.Execute()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		contract.LogWarn("Cannot stop profiling", stopErr)
	}
	iocache.CloseCaching()
	if err != nil {
		contract.LogFatal("Command failed", err)
	}
}
