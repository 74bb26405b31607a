package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistration(t *testing.T) {
	sr, err := NewServiceRegistry("consul:8500", "document-service", "document-service-1", "0.0.0.0", "8080")
	require.NoError(t, err)

	reg := sr.Registration()
	assert.Equal(t, "document-service-1", reg.ID)
	assert.Equal(t, 8080, reg.Port)
	assert.Contains(t, reg.Tags, "document")
	assert.Equal(t, "http://document-service:8080/health", reg.Check.HTTP)
}

func TestNewServiceRegistryRejectsBadPort(t *testing.T) {
	_, err := NewServiceRegistry("consul:8500", "document-service", "id", "", "http")
	assert.Error(t, err)
}
