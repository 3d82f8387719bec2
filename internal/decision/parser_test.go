package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBounds() AltitudeBounds {
	return AltitudeBounds{Min: 10, Max: 150}
}

func TestParseDirectives(t *testing.T) {
	t.Parallel()
	p := NewParser(testBounds())

	t.Run("move to target", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("建议飞向ID 3的公交车进行车牌识别。")
		require.Len(t, cmds, 1)
		assert.Equal(t, KindMoveToTarget, cmds[0].Kind)
		assert.Equal(t, int64(3), cmds[0].TargetID)
	})

	t.Run("move to target without space", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("飞向ID12进行确认")
		require.Len(t, cmds, 1)
		assert.Equal(t, int64(12), cmds[0].TargetID)
	})

	t.Run("move away", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("检测到人群聚集，建议远离人群区域。")
		require.Len(t, cmds, 1)
		assert.Equal(t, KindMoveAway, cmds[0].Kind)
	})

	t.Run("hold altitude", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("保持30米高度巡航。")
		require.Len(t, cmds, 1)
		assert.Equal(t, KindHoldAltitude, cmds[0].Kind)
		assert.Equal(t, 30.0, cmds[0].Meters)
		assert.False(t, cmds[0].Clamped)
	})

	t.Run("hold altitude clamps to ceiling", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("保持500米高度。")
		require.Len(t, cmds, 1)
		assert.Equal(t, 150.0, cmds[0].Meters)
		assert.True(t, cmds[0].Clamped)
	})

	t.Run("hold altitude clamps to floor", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("保持2米高度。")
		require.Len(t, cmds, 1)
		assert.Equal(t, 10.0, cmds[0].Meters)
		assert.True(t, cmds[0].Clamped)
	})

	t.Run("ascend", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("建议上升20米观察全局。")
		require.Len(t, cmds, 1)
		assert.Equal(t, KindChangeAltitude, cmds[0].Kind)
		assert.Equal(t, 20.0, cmds[0].Meters)
	})

	t.Run("descend is negative", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("下降15米靠近观察。")
		require.Len(t, cmds, 1)
		assert.Equal(t, -15.0, cmds[0].Meters)
	})

	t.Run("oversized ascent is capped", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("上升200米。")
		require.Len(t, cmds, 1)
		assert.Equal(t, 150.0, cmds[0].Meters)
		assert.True(t, cmds[0].Clamped)
	})

	t.Run("hover", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("目标静止，建议悬停观察。")
		require.Len(t, cmds, 1)
		assert.Equal(t, KindHover, cmds[0].Kind)
	})

	t.Run("commentary without directives yields nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, p.Parse("当前画面无异常情况，所有目标行为正常。"))
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, p.Parse(""))
	})

	t.Run("multiple directives in rule order", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("飞向ID 5的卡车，之后保持50米高度。")
		require.Len(t, cmds, 2)
		assert.Equal(t, KindMoveToTarget, cmds[0].Kind)
		assert.Equal(t, KindHoldAltitude, cmds[1].Kind)
	})

	t.Run("each rule fires at most once", func(t *testing.T) {
		t.Parallel()
		cmds := p.Parse("飞向ID 1。然后飞向ID 2。")
		require.Len(t, cmds, 1)
		assert.Equal(t, int64(1), cmds[0].TargetID)
	})
}

func TestAltitudeBoundsClamp(t *testing.T) {
	t.Parallel()
	b := testBounds()

	cases := []struct {
		in      float64
		want    float64
		clamped bool
	}{
		{50, 50, false},
		{10, 10, false},
		{150, 150, false},
		{9.9, 10, true},
		{151, 150, true},
		{-5, 10, true},
	}
	for _, tc := range cases {
		got, did := b.Clamp(tc.in)
		assert.Equal(t, tc.want, got, "Clamp(%v)", tc.in)
		assert.Equal(t, tc.clamped, did, "Clamp(%v) clamped flag", tc.in)
	}
}
