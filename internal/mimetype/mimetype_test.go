package mimetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForPathKnownExtensions(t *testing.T) {
	require.Equal(t, "text/html", ForPath("/www/index.html"))
	require.Equal(t, "image/png", ForPath("/www/assets/logo.PNG"))
	require.Equal(t, "application/json", ForPath("data.json"))
}

func TestForPathUnknownOrMissingExtension(t *testing.T) {
	require.Equal(t, Default, ForPath("/www/README"))
	require.Equal(t, Default, ForPath("/www/weird.ext"))
}

func TestForPathDotInDirectoryNotExtension(t *testing.T) {
	require.Equal(t, Default, ForPath("/www/v1.2/readme"))
}
