package app

const (
	Name           = "benchlink"
	ConfigFilename = "config.json"
	DBFilename     = "bench.db"
	LogFilename    = "bench.log"
)
