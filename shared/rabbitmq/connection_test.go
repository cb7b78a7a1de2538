package rabbitmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialConfig(t *testing.T) {
	t.Run("connection timeout bounds the dial", func(t *testing.T) {
		cfg := dialConfig(&Config{
			Heartbeat:         10 * time.Second,
			ConnectionTimeout: 30 * time.Second,
		})

		assert.Equal(t, 10*time.Second, cfg.Heartbeat)
		assert.NotNil(t, cfg.Dial)
	})

	t.Run("zero timeout keeps the library default", func(t *testing.T) {
		cfg := dialConfig(&Config{
			Heartbeat: 10 * time.Second,
		})

		assert.Nil(t, cfg.Dial)
	})
}
