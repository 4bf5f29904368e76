package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readability
var (
	ServerAddr    string // listen addr for the http/ws server
	DBFile        string // path of the sqlite database file
	TrackFile     string // path of the track definition file (yaml)
	CarFile       string // path of the car/component definition file (yaml)
	LogLevel      string // sets the log level (zap log level values)
	LogFormat     string // text vs json
	LogFilter     string // zapfilter rules, empty = no filtering
	LapTimeout    string // duration a lap may wait for submissions before force-resolving
	ProfilingPort int    // port for profiling
)

// Config holds configuration values which are used by the application
type Config struct {
	PrintMessage bool // if true, incoming ws payloads are printed on debug level
}
