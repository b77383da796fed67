package settings

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcloud/go-settings/pkg/activity"
)

type toggleCall struct {
	ID      string
	Enabled bool
}

type recordingToggleClient struct {
	mu    sync.Mutex
	calls []toggleCall
	fail  map[toggleCall]error
}

func (r *recordingToggleClient) SetEnabled(_ context.Context, _, _, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := toggleCall{ID: id, Enabled: enabled}
	r.calls = append(r.calls, call)
	return r.fail[call]
}

func paymentsController(t *testing.T, collab *memoryCollaborator, opts ...Option) *Controller {
	t.Helper()
	collab.docs["guild-1"] = paymentsDoc(false, true, false)
	base := []Option{WithClock(newFakeClock()), WithFields(FieldTable{
		"gateways.mercadopago.enabled": Bool(),
		"gateways.stripe.enabled":      Bool(),
		"gateways.pix.enabled":         Bool(),
		"gateways.pix.key":             Text(),
	})}
	c := NewController("payments", paymentsDoc(false, false, false), collab, append(base, opts...)...)
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background(), "guild-1"))
	return c
}

func gatewayState(t *testing.T, c *Controller) map[string]bool {
	t.Helper()
	state := map[string]bool{}
	for _, id := range []string{"mercadopago", "stripe", "pix"} {
		state[id] = lookup(t, c.Document(), fmt.Sprintf("gateways.%s.enabled", id)).(bool)
	}
	return state
}

func TestToggleExclusiveEnablesTargetAndDisablesSiblings(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	c := paymentsController(t, newMemoryCollaborator(), WithActivity(emitter))
	client := &recordingToggleClient{}

	require.NoError(t, c.ToggleExclusive(context.Background(), "gateways", "mercadopago", client))

	assert.Equal(t, map[string]bool{"mercadopago": true, "stripe": false, "pix": false}, gatewayState(t, c))
	assert.Equal(t, []toggleCall{{"mercadopago", true}, {"stripe", false}}, client.calls)
	assert.Equal(t, StatusSuccess, c.Status())
	assert.Equal(t, []string{activity.VerbSettingsToggled}, capture.Verbs())
	assert.Equal(t, "gateways.mercadopago.enabled", capture.Events()[0].Metadata["path"])
}

func TestToggleExclusiveTargetFailureRestoresGroup(t *testing.T) {
	c := paymentsController(t, newMemoryCollaborator())
	client := &recordingToggleClient{fail: map[toggleCall]error{{"mercadopago", true}: errBackend}}

	err := c.ToggleExclusive(context.Background(), "gateways", "mercadopago", client)
	require.ErrorIs(t, err, errBackend)

	assert.Equal(t, map[string]bool{"mercadopago": false, "stripe": true, "pix": false}, gatewayState(t, c))
	assert.Equal(t, []toggleCall{{"mercadopago", true}}, client.calls)
	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "could not update mercadopago", snap.Message)
}

func TestToggleExclusiveSiblingFailureReloads(t *testing.T) {
	collab := newMemoryCollaborator()
	c := paymentsController(t, collab)
	loadsBefore := collab.loads
	client := &recordingToggleClient{fail: map[toggleCall]error{{"stripe", false}: errBackend}}

	err := c.ToggleExclusive(context.Background(), "gateways", "pix", client)
	require.ErrorIs(t, err, errBackend)

	assert.Equal(t, loadsBefore+1, collab.loads, "sibling failure forces an authoritative reload")
	assert.Equal(t, map[string]bool{"mercadopago": false, "stripe": true, "pix": false}, gatewayState(t, c))
	assert.Equal(t, StatusError, c.Status())
}

func TestToggleExclusiveDisablesEnabledEntry(t *testing.T) {
	c := paymentsController(t, newMemoryCollaborator())
	client := &recordingToggleClient{}

	require.NoError(t, c.ToggleExclusive(context.Background(), "gateways", "stripe", client))

	assert.Equal(t, map[string]bool{"mercadopago": false, "stripe": false, "pix": false}, gatewayState(t, c))
	assert.Equal(t, []toggleCall{{"stripe", false}}, client.calls)
}

func TestToggleExclusiveUnknownEntry(t *testing.T) {
	c := paymentsController(t, newMemoryCollaborator())
	before := c.Document()

	err := c.ToggleExclusive(context.Background(), "gateways", "paypal", &recordingToggleClient{})
	require.ErrorIs(t, err, ErrUnknownPath)
	assert.Equal(t, before, c.Document())
	assert.ErrorIs(t, c.LastRejection(), ErrUnknownPath)
}

func TestConfigureExclusiveSavesSoleGateway(t *testing.T) {
	collab := newMemoryCollaborator()
	c := paymentsController(t, collab)

	require.NoError(t, c.ConfigureExclusive(context.Background(), "gateways", "pix", Document{"key": "chave@example.com"}))

	require.Equal(t, 1, collab.persistCount())
	saved := collab.docs["guild-1"]
	assert.Equal(t, true, lookup(t, saved, "gateways.pix.enabled"))
	assert.Equal(t, "chave@example.com", lookup(t, saved, "gateways.pix.key"))
	assert.Equal(t, false, lookup(t, saved, "gateways.stripe.enabled"))
	assert.Equal(t, StatusSuccess, c.Status())
}
