package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneTemplateNames(t *testing.T) {
	assert.Equal(t, []string{"demo", "pendulum_chain", "servo_arm", "stack"}, SceneTemplateNames())

	listed := ListSceneTemplates()
	assert.Len(t, listed, 4)
	for _, name := range SceneTemplateNames() {
		assert.NotEmpty(t, listed[name], name)
	}
}

func TestGetSceneTemplate(t *testing.T) {
	assert.Nil(t, GetSceneTemplate("galaxy"))

	a := GetSceneTemplate("stack")
	require.NotNil(t, a)
	a.Scene.Bodies[1].Position.Y = 100

	b := GetSceneTemplate("stack")
	assert.Equal(t, 0.5, b.Scene.Bodies[1].Position.Y, "templates must not share state")
}

func TestSceneTemplates_Consistent(t *testing.T) {
	for _, name := range SceneTemplateNames() {
		t.Run(name, func(t *testing.T) {
			tmpl := GetSceneTemplate(name)
			require.NotNil(t, tmpl)
			assert.Equal(t, name, tmpl.Name)
			assert.Equal(t, name, tmpl.Scene.Name)

			names := make(map[string]bool)
			for _, body := range tmpl.Scene.Bodies {
				assert.False(t, names[body.Name], "duplicate body %q", body.Name)
				names[body.Name] = true
				assert.NotZero(t, body.CollisionMask, body.Name)
			}
			for _, joint := range tmpl.Scene.Joints {
				assert.True(t, names[joint.BodyA], "joint %q: unknown body %q", joint.Name, joint.BodyA)
				assert.True(t, names[joint.BodyB], "joint %q: unknown body %q", joint.Name, joint.BodyB)
				if joint.Limits != nil {
					assert.LessOrEqual(t, joint.Limits.Lower, joint.Limits.Upper)
				}
			}
		})
	}
}

func TestSceneTemplates_LinksIgnoreEachOther(t *testing.T) {
	chain := GetSceneTemplate("pendulum_chain")
	require.NotNil(t, chain)

	var links []BodyConfig
	for _, body := range chain.Scene.Bodies {
		if body.Shape == ShapeCapsule {
			links = append(links, body)
		}
	}
	require.Len(t, links, 5)
	assert.Len(t, chain.Scene.Joints, 5)

	for _, l := range links {
		assert.NotZero(t, l.CollisionMask&LayerWorld)
		assert.NotZero(t, l.IgnoreMask&LayerLink)
	}
}

func TestApplySceneTemplate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ApplySceneTemplate(cfg, "pendulum_chain"))
	assert.Equal(t, "pendulum_chain", cfg.Scene.Name)

	err := ApplySceneTemplate(cfg, "asteroids")
	require.Error(t, err)
	assert.Equal(t, "pendulum_chain", cfg.Scene.Name)
}
