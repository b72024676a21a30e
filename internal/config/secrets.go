package config

const redacted = "***"

// Redacted returns a copy of cfg safe to print.
func Redacted(cfg *Config) Config {
	out := *cfg
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Keys.Password)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
