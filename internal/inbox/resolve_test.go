package inbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeContacts(t *testing.T) {
	t.Run("keeps order, merges by id", func(t *testing.T) {
		in := []Contact{
			{ID: "c1", Name: "Jane", Email: "jane@example.com"},
			{ID: "c2", Name: "Bob", Phone: "+15550001111"},
			{ID: "c1", Name: "Jane Doe", Email: "jane@example.com", Phone: "+15552223333"},
		}
		out := DedupeContacts(in)
		require.Len(t, out, 2)
		require.Equal(t, "c1", out[0].ID)
		require.Equal(t, "Jane Doe", out[0].Name)
		require.Equal(t, "+15552223333", out[0].Phone)
		require.Equal(t, "c2", out[1].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, DedupeContacts(nil))
	})
}

func TestContactPreferredChannel(t *testing.T) {
	require.Equal(t, ChannelEmail, Contact{Email: "a@b.co", Phone: "+12"}.PreferredChannel())
	require.Equal(t, ChannelSMS, Contact{Phone: "+12"}.PreferredChannel())
	require.Equal(t, "a@b.co", Contact{Email: "a@b.co", Phone: "+12"}.Recipient())
	require.Equal(t, "+12", Contact{Phone: "+12"}.Recipient())
}
