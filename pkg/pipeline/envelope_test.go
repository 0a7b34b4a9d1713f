package pipeline

import (
	"testing"
	"time"

	"github.com/vnykmshr/pipexec/internal/testutil"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

func TestEnvelopeAttributeRoundTrip(t *testing.T) {
	env := NewEnvelope("payload")

	v, ok := env.Attribute("missing")
	testutil.AssertEqual(t, ok, false)
	if v != nil {
		t.Errorf("absent attribute = %v, want nil", v)
	}

	testutil.AssertEqual(t, env.SetAttribute("budget", 3*time.Millisecond), true)
	v, ok = env.Attribute("budget")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, v.(time.Duration), 3*time.Millisecond)
}

func TestEnvelopeSetIsIfAbsent(t *testing.T) {
	env := NewEnvelope(0)

	testutil.AssertEqual(t, env.SetAttribute("k", "first"), true)
	testutil.AssertEqual(t, env.SetAttribute("k", "second"), false)

	v, _ := env.Attribute("k")
	testutil.AssertEqual(t, v.(string), "first")
}

func TestEnvelopeReplace(t *testing.T) {
	env := NewEnvelope(0)

	_, ok := env.ReplaceAttribute("k", 1)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, env.HasAttribute("k"), false)

	env.SetAttribute("k", 1)
	old, ok := env.ReplaceAttribute("k", 2)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, old.(int), 1)

	v, _ := env.Attribute("k")
	testutil.AssertEqual(t, v.(int), 2)

	env.PutAttribute("other", "x")
	env.PutAttribute("other", "y")
	v, _ = env.Attribute("other")
	testutil.AssertEqual(t, v.(string), "y")
	testutil.AssertEqual(t, len(env.Attributes()), 2)
}

func TestEnvelopeAppendFirstMatchWins(t *testing.T) {
	env := NewEnvelope(0)
	env.AppendAttribute("k", "a")
	env.AppendAttribute("k", "b")

	v, _ := env.Attribute("k")
	testutil.AssertEqual(t, v.(string), "a")

	testutil.AssertEqual(t, env.DeleteAttribute("k"), true)
	v, _ = env.Attribute("k")
	testutil.AssertEqual(t, v.(string), "b")

	testutil.AssertEqual(t, env.DeleteAttribute("k"), true)
	testutil.AssertEqual(t, env.DeleteAttribute("k"), false)
}

func TestEnvelopeAttributesIsCopy(t *testing.T) {
	env := NewEnvelope(0)
	env.SetAttribute("k", 1)

	attrs := env.Attributes()
	attrs[0].Value = 99

	v, _ := env.Attribute("k")
	testutil.AssertEqual(t, v.(int), 1)
}

func TestAttributeAs(t *testing.T) {
	env := NewEnvelope(0)
	env.SetAttribute("sleep", 5*time.Millisecond)

	d, ok := AttributeAs[time.Duration](env, "sleep")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, d, 5*time.Millisecond)

	_, ok = AttributeAs[string](env, "sleep")
	testutil.AssertEqual(t, ok, false)

	_, ok = AttributeAs[time.Duration](env, "missing")
	testutil.AssertEqual(t, ok, false)
}

func TestEnvelopeRouting(t *testing.T) {
	env := NewEnvelope(0)

	env.RouteTo(topology.Address{X: 2})
	env.RouteTo(topology.Address{X: 3})
	addr, ok := AttributeAs[topology.Address](env, AttrNextAddress)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, addr, topology.Address{X: 3})

	env.RouteToOutput()
	name, ok := AttributeAs[string](env, AttrNextName)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, name, OutputName)

	testutil.AssertNotEqual(t, NewEnvelope(0).ID(), env.ID())
	if env.Node() != nil {
		t.Error("fresh envelope should have no node")
	}
}
