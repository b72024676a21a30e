package s3blob

import (
	"os"
	"testing"
)

func liveConfig(t *testing.T) ClientConfig {
	t.Helper()
	endpoint := os.Getenv("MKP_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("MKP_TEST_S3_ENDPOINT not set")
	}
	return ClientConfig{
		Endpoint:       endpoint,
		Region:         "us-east-1",
		Bucket:         os.Getenv("MKP_TEST_S3_BUCKET"),
		AccessKey:      os.Getenv("MKP_TEST_S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("MKP_TEST_S3_SECRET_KEY"),
		ForcePathStyle: true,
	}
}
