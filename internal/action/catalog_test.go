package action

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 23, c.Len())
	for _, name := range []string{
		"set", "we_replace", "we_walls", "we_faces", "we_overlay", "we_center",
		"we_naturalize", "we_line", "we_curve", "we_move", "we_stack", "we_smooth",
		"we_hollow", "we_deform", "we_cyl", "we_sphere", "we_pyramid", "we_cone",
		"we_generate", "we_fill", "we_remove_near", "we_replace_near", "place_sign",
	} {
		assert.True(t, c.Has(name), name)
	}
	assert.False(t, c.Has("we_forest"))

	defs := c.Definitions()
	assert.Equal(t, "set", defs[0].Name)
	assert.Equal(t, "place_sign", defs[len(defs)-1].Name)
}

func TestCatalog_SharedVec3(t *testing.T) {
	c := MustLoad()

	set, ok := c.Get("set")
	require.True(t, ok)
	pos1 := set.Parameters["pos1"]
	require.NotNil(t, pos1)
	assert.Equal(t, "object", pos1.Type)
	assert.Equal(t, "First corner of the cuboid region", pos1.Description)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, pos1.Required)
	assert.Equal(t, "number", pos1.Properties["x"].Type)

	curve, ok := c.Get("we_curve")
	require.True(t, ok)
	require.NotNil(t, curve.Parameters["points"].Items)
	assert.Equal(t, "object", curve.Parameters["points"].Items.Type)

	move, _ := c.Get("we_move")
	assert.Equal(t, []string{"north", "south", "east", "west", "up", "down"}, move.Parameters["direction"].Enum)
}

func TestCatalog_ToolInfos(t *testing.T) {
	c := MustLoad()

	tools := c.ToolInfos()
	require.Len(t, tools, c.Len())

	var sign *schema.ToolInfo
	for _, tool := range tools {
		if tool.Name == "place_sign" {
			sign = tool
		}
	}
	require.NotNil(t, sign)
	assert.NotEmpty(t, sign.Desc)

	js, err := sign.ParamsOneOf.ToJSONSchema()
	require.NoError(t, err)
	require.NotNil(t, js)
	assert.ElementsMatch(t, []string{"position", "signType", "wallMounted", "facing", "frontLines"}, js.Required)
}

func TestCatalog_Suggest(t *testing.T) {
	c := MustLoad()

	s, ok := c.Suggest("we_wall")
	assert.True(t, ok)
	assert.Equal(t, "we_walls", s)

	s, ok = c.Suggest("we_spere")
	assert.True(t, ok)
	assert.Equal(t, "we_sphere", s)

	_, ok = c.Suggest("teleport_player_home")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml": "actions: [",
		"missing name": "actions:\n  - description: x\n",
		"duplicate":    "actions:\n  - name: a\n  - name: a\n",
		"bad type":     "actions:\n  - name: a\n    parameters:\n      p: {type: vector}\n",
		"bad required": "actions:\n  - name: a\n    parameters:\n      p: {type: string}\n    required: [q]\n",
		"nested type":  "actions:\n  - name: a\n    parameters:\n      p:\n        type: array\n        items: {type: tuple}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
