package config

const (
	defaultWorkers     = 2
	defaultQueueSize   = 100
	defaultHistorySize = 50
	defaultListen      = ":8080"
	defaultMetricsPath = "/metrics"
	defaultLanguage    = "en"
)

func applyDefaults(c *Config) {
	c.Store.Driver = normalizeDriver(c.Store.Driver)
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverMemory
	}

	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = defaultWorkers
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = defaultQueueSize
	}
	if c.Jobs.HistorySize <= 0 {
		c.Jobs.HistorySize = defaultHistorySize
	}
	if c.Jobs.RetryBackoff == "" {
		c.Jobs.RetryBackoff = RetryBackoffLinear
		if c.Jobs.MaxRetries == 0 {
			c.Jobs.MaxRetries = 2
		}
	} else if mode := NormalizeRetryBackoff(string(c.Jobs.RetryBackoff)); mode != "" {
		c.Jobs.RetryBackoff = mode
	}
	if c.Jobs.RetryInitialDelay == "" {
		c.Jobs.RetryInitialDelay = "1s"
	}
	if c.Jobs.RetryMaxDelay == "" {
		c.Jobs.RetryMaxDelay = "30s"
	}

	if c.Publication.DefaultLanguage == "" {
		c.Publication.DefaultLanguage = defaultLanguage
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if c.Events.Stream == "" {
		c.Events.Stream = "BOOKVERSIONS"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "bookversions"
	}
	if c.Archive.AuthorName == "" {
		c.Archive.AuthorName = "bookversions"
	}
	if c.Archive.AuthorEmail == "" {
		c.Archive.AuthorEmail = "bookversions@localhost"
	}
	for i := range c.Schedules {
		if c.Schedules[i].User == "" {
			c.Schedules[i].User = c.Auth.DefaultUser
		}
	}
}
