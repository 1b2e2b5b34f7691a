package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultUserAgent(t *testing.T) {
	assert.Equal(t, "al002-psmoveclient/"+Version, DefaultUserAgent)
}
