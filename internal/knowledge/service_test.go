package knowledge

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKeyIsUniquePerUpload(t *testing.T) {
	a := storageKey("manual.pdf")
	b := storageKey("manual.pdf")

	assert.NotEqual(t, a, b, "same filename must get distinct objects")
	assert.True(t, strings.HasSuffix(a, "_manual.pdf"))
	assert.True(t, strings.HasSuffix(b, "_manual.pdf"))
}

func TestStorageKeyPrefixIsUUID(t *testing.T) {
	key := storageKey("faq.txt")

	prefix, name, found := strings.Cut(key, "_")
	require.True(t, found)
	assert.Equal(t, "faq.txt", name)

	_, err := uuid.Parse(prefix)
	assert.NoError(t, err)
}
