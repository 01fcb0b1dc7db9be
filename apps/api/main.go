package main

import "github.com/thinkquality/thinkquality/core"

// Configuration comes from the environment, see core.NewConfig.
// Set `<ENV>_DATABASE_INMEMORY=true` to run without postgres.
func main() {
	startWithDig(core.Conf)
}
