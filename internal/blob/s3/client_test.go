package s3blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio.local:9000", normaliseEndpoint("https://minio.local:9000", false))
	assert.Equal(t, "https://r2.example.com", normaliseEndpoint("r2.example.com", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "prod"}
	assert.Equal(t, "prod/resolutions/c1/x.json", c.Key("resolutions/c1/x.json"))
	assert.Equal(t, "resolutions/c1/x.json", c.stripPrefix("prod/resolutions/c1/x.json"))

	bare := &Client{}
	assert.Equal(t, "a/b", bare.Key("a/b"))
	assert.Equal(t, "a/b", bare.stripPrefix("a/b"))
}
