package cfg

type Cfg struct {
	// Pipeline configuration
	SourcesFile string
	OutputDir   string
	WorkerCount int
	Timeout     int
	PostLimit   int
	IndexLimit  int

	// Preview server configuration
	Serve        bool
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
