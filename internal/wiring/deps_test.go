package wiring_test

import (
	"context"
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/app"
	_ "go.trai.ch/pipecache/internal/wiring"
)

// TestGraftDependencies ensures that the dependency injection graph is valid
// at compile/test time. It checks that every node declaring a dependency
// actually uses it, and every used dependency is declared.
func TestGraftDependencies(t *testing.T) {
	// graft.AssertDepsValid infers the dependency ID from the package name of the
	// type used in Dep[T]. Several nodes provide interfaces from the shared ports
	// package, so every such dependency is reported as "ports".
	t.Skip("Skipping Graft validation due to static analysis limitation with shared ports package")
	graft.AssertDepsValid(t, "../../internal")
}

func TestComponentsResolve(t *testing.T) {
	t.Chdir(t.TempDir())

	components, _, err := graft.ExecuteFor[*app.Components](context.Background())
	require.NoError(t, err)
	assert.NotNil(t, components.App)
	assert.NotNil(t, components.Logger)
	require.NotNil(t, components.Config)
	assert.NotEmpty(t, components.Config.StorePath)
}
