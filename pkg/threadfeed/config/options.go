package config

// WithPort sets the HTTP listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port != "" {
			c.Port = port
		}
		return nil
	}
}

// WithEnvironment sets the runtime environment name
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env != "" {
			c.Environment = env
		}
		return nil
	}
}

// WithPostgres selects the PostgreSQL repository
func WithPostgres(databaseURL string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseType = "postgres"
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithS3Storage selects the S3 blob store
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		c.StorageType = "s3"
		c.S3 = s3
		return nil
	}
}

// WithFSStorage selects the filesystem blob store
func WithFSStorage(fs FSConfig) Option {
	return func(c *ServerConfig) error {
		c.StorageType = "fs"
		c.FS = fs
		return nil
	}
}

// WithGrantTTLSeconds sets the upload grant validity window
func WithGrantTTLSeconds(seconds int) Option {
	return func(c *ServerConfig) error {
		if seconds > 0 {
			c.GrantTTLSeconds = seconds
		}
		return nil
	}
}

// WithPageSizes sets the default and maximum feed page sizes
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(c *ServerConfig) error {
		if defaultSize > 0 {
			c.DefaultPageSize = defaultSize
		}
		if maxSize > 0 {
			c.MaxPageSize = maxSize
		}
		return nil
	}
}

// WithEventLogging toggles the structured-log event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
