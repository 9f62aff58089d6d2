package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "shoot-events",
	Level: hclog.LevelFromString("INFO"),
})
