package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
)

func TestBreakTreeQueuesFullMode(t *testing.T) {
	m := NewMinecraft(clock.New())

	n := m.HandleReply("let me get some wood [BREAK: oak_tree] and then we build")
	require.Equal(t, 1, n)

	cmds := m.Drain()
	require.Len(t, cmds, 1)
	require.Equal(t, "minecraft", cmds[0].Game)
	require.Equal(t, "break_tree", cmds[0].Action)
	require.Equal(t, "oak_tree", cmds[0].Params["target"])
	require.Equal(t, "full", cmds[0].Params["mode"])
	require.NotEmpty(t, cmds[0].ID)

	require.Empty(t, m.Drain(), "drain clears the queue")
}

func TestBreakVariants(t *testing.T) {
	m := NewMinecraft(clock.New())

	m.HandleReply("[DIG: 5]")
	m.HandleReply("[BREAK: dirt 10]")
	m.HandleReply("[BREAK: leaves]")
	m.HandleReply("[BREAK: surface]")

	cmds := m.Drain()
	require.Len(t, cmds, 4)
	require.Equal(t, "dig_nearest", cmds[0].Action)
	require.Equal(t, 5, cmds[0].Params["amount"])
	require.Equal(t, "excavate", cmds[1].Action)
	require.Equal(t, 10, cmds[1].Params["amount"])
	require.Equal(t, "shear_leaves", cmds[2].Action)
	require.Equal(t, 999, cmds[2].Params["amount"])
	require.Equal(t, "dig_up", cmds[3].Action)
	require.Equal(t, "surface", cmds[3].Params["target"])
}

func TestMineAndOtherTags(t *testing.T) {
	m := NewMinecraft(clock.New())

	n := m.HandleReply("[MINE: down 20] then [CRAFT: wooden_pickaxe] and [SPEAK: on my way]")
	require.Equal(t, 3, n)

	cmds := m.Drain()
	require.Equal(t, "mine_shaft", cmds[0].Action)
	require.Equal(t, 20, cmds[0].Params["depth"])
	require.Equal(t, "craft", cmds[1].Action)
	require.Equal(t, "wooden_pickaxe", cmds[1].Params["item"])
	require.Equal(t, "speak", cmds[2].Action)
	require.Equal(t, "on my way", cmds[2].Params["text"])
}

func TestPlainTextQueuesNothing(t *testing.T) {
	m := NewMinecraft(clock.New())
	require.Zero(t, m.HandleReply("no tags here, just conversation about [lowercase: stuff]"))
	require.Zero(t, m.Pending())

	// Unknown uppercase tags are ignored too.
	require.Zero(t, m.HandleReply("[TELEPORT: home]"))
}

func TestQueueIsBounded(t *testing.T) {
	m := NewMinecraft(clock.New())
	for i := 0; i < maxQueuedCommands+10; i++ {
		m.HandleReply("[BREAK: oak_tree]")
	}
	require.Equal(t, maxQueuedCommands, m.Pending())
}
