package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() { logger.Replace(nil) })

	require.NoError(t, ConfigureLogging("debug"))
	require.NoError(t, ConfigureLogging(""))
}
