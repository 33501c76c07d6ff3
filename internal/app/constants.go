package app

const (
	Name            = "kettlebridge"
	ConfigFilename  = "config.json"
	JournalFilename = "journal.db"
	LogFilename     = "app.log"
	DefaultTCPPort  = 8899
)
