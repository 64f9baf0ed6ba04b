package shipping

import (
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
)

func TestRegistryResolvesByName(t *testing.T) {
	sr := newFakeCarrier("shiprocket")
	dl := newFakeCarrier("delhivery")

	registry, err := NewRegistry("shiprocket", sr, dl)
	require.NoError(t, err)

	carrier, err := registry.Resolve("delhivery")
	require.NoError(t, err)
	require.Equal(t, "delhivery", carrier.Name())

	carrier, err = registry.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "shiprocket", carrier.Name())

	require.Equal(t, []string{"delhivery", "shiprocket"}, registry.Providers())
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	registry, err := NewRegistry("shiprocket", newFakeCarrier("shiprocket"))
	require.NoError(t, err)

	_, err = registry.Resolve("pigeon-post")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegistryRequiresRegisteredDefault(t *testing.T) {
	_, err := NewRegistry("delhivery", newFakeCarrier("shiprocket"))
	require.Error(t, err)
}
