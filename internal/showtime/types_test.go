package showtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTheatres() []Theatre {
	return []Theatre{{
		ID:      StringPtr("abc"),
		Name:    "Royal",
		Address: "1 Main St",
		Movies: []Movie{{
			Name:          "Heat",
			LocalTimes:    []string{"1:00", "4:00"},
			MilitaryTimes: []string{"13:00", "16:00"},
		}},
	}}
}

func TestRenderSelectsRepresentation(t *testing.T) {
	t.Parallel()

	theatres := sampleTheatres()

	local := Render(theatres, false)
	require.Equal(t, []string{"1:00", "4:00"}, local[0].Movies[0].Times)

	military := Render(theatres, true)
	require.Equal(t, []string{"13:00", "16:00"}, military[0].Movies[0].Times)

	require.Nil(t, theatres[0].Movies[0].Times, "render must not mutate its input")
}

func TestStripDropsRenderedTimes(t *testing.T) {
	t.Parallel()

	rendered := Render(sampleTheatres(), true)
	stripped := Strip(rendered)
	require.Nil(t, stripped[0].Movies[0].Times)
	require.NotNil(t, rendered[0].Movies[0].Times)
}

func TestRenderAlwaysEmitsTimes(t *testing.T) {
	t.Parallel()

	theatres := []Theatre{{Name: "Royal", Movies: []Movie{{Name: "Matinee Only"}}}}
	for _, military := range []bool{false, true} {
		data, err := json.Marshal(Render(theatres, military))
		require.NoError(t, err)
		require.Contains(t, string(data), `"times":[]`)
	}
}

func TestStringPtr(t *testing.T) {
	t.Parallel()

	require.Nil(t, StringPtr(""))
	require.Equal(t, "x", *StringPtr("x"))
}
