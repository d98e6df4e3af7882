package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDestroyCascadesDepthFirst(t *testing.T) {
	var order []string
	root := New("root")
	child := root.NewChild("child")
	grandchild := child.NewChild("grandchild")

	root.OnDestroy(func() { order = append(order, "root") })
	child.OnDestroy(func() { order = append(order, "child") })
	grandchild.OnDestroy(func() { order = append(order, "grandchild") })

	root.Destroy()

	require.Equal(t, []string{"grandchild", "child", "root"}, order)
	require.True(t, root.Destroyed())
	require.True(t, child.Destroyed())
	require.True(t, grandchild.Destroyed())
}

func TestDestroyIsIdempotent(t *testing.T) {
	r := New("r")
	calls := 0
	r.OnDestroy(func() { calls++ })
	r.Destroy()
	r.Destroy()
	require.Equal(t, 1, calls)
}

func TestDestroyedRegionRejectsNewChild(t *testing.T) {
	r := New("r")
	r.Destroy()
	require.Panics(t, func() { r.NewChild("x") })
}

func TestDestroyingChildUnlinksFromParent(t *testing.T) {
	parent := New("parent")
	child := parent.NewChild("child")
	child.Destroy()
	// destroying the parent afterward must not re-run the child's hooks.
	calls := 0
	child.OnDestroy(func() { calls++ })
	parent.Destroy()
	require.Equal(t, 0, calls)
}
