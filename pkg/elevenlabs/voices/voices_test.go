package voices

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVoice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", Rachel.ID())
	assert.Equal(t, "Rachel", Rachel.Name())
	assert.Equal(t, GenderFemale, Rachel.Gender())
	assert.Equal(t, "VR6AewLTigWG4xSOukaG", Arnold.ID())
	assert.Equal(t, Rachel, Default)
}

func TestAll(t *testing.T) {
	t.Parallel()

	all := All()
	require.NotEmpty(t, all)

	ids := lo.Map(all, func(v StaticVoice, _ int) string { return v.ID() })
	assert.Len(t, lo.Uniq(ids), len(ids))

	names := lo.Map(all, func(v StaticVoice, _ int) string { return v.Name() })
	assert.Len(t, lo.Uniq(names), len(names))

	all[0] = River
	assert.Equal(t, Rachel, All()[0])
}

func TestByName(t *testing.T) {
	t.Parallel()

	v, ok := ByName("arnold")
	require.True(t, ok)
	assert.Equal(t, Arnold, v)

	v, ok = ByName("  RACHEL ")
	require.True(t, ok)
	assert.Equal(t, Rachel, v)

	_, ok = ByName("nobody")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Josh.ID(), Resolve("josh"))
	assert.Equal(t, "customVoiceId123", Resolve("customVoiceId123"))

	v, ok := ByID(Josh.ID())
	require.True(t, ok)
	assert.Equal(t, "Josh", v.Name())
}

func TestFromStatic(t *testing.T) {
	t.Parallel()

	v := FromStatic(River)
	assert.Equal(t, River.ID(), v.VoiceID)
	assert.Equal(t, GenderNeutral, v.Gender())
	assert.Equal(t, "premade", v.Category)
}
