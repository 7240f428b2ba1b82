package rg

import (
	"errors"
	"testing"
)

func TestConnectNilProducer(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	fx, _ := g.NewShader(passthrough)
	if err := fx.Connect("image", nil, ""); !errors.Is(err, ErrNilProducer) {
		t.Errorf("Connect(nil) = %v, want ErrNilProducer", err)
	}
}

func TestConnectAcrossGraphs(t *testing.T) {
	g1, _ := newTestGraph(t, 8, 8)
	g2, _ := newTestGraph(t, 8, 8)
	a, _ := g1.NewShader(passthrough)
	b, _ := g2.NewShader(passthrough)
	if err := b.Connect("image", a, ""); !errors.Is(err, ErrNotInGraph) {
		t.Errorf("cross-graph Connect = %v, want ErrNotInGraph", err)
	}
}

func TestConnectReplacesExistingEdge(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	first, _ := g.NewShader(passthrough, WithName("first"))
	second, _ := g.NewShader(passthrough, WithName("second"))
	sink, _ := g.NewShader(passthrough, WithName("sink"))

	if err := sink.Connect("image", first, ""); err != nil {
		t.Fatal(err)
	}
	if err := sink.Connect("image", second, ""); err != nil {
		t.Fatal(err)
	}

	conn := sink.base().inputs["image"]
	if conn.producer != second.ID() {
		t.Errorf("slot references node %d, want %d", conn.producer, second.ID())
	}
	if _, ok := first.base().consumers[sink.ID()]; ok {
		t.Error("replaced producer still holds a consumer back-reference")
	}
	if _, ok := second.base().consumers[sink.ID()]; !ok {
		t.Error("new producer is missing the consumer back-reference")
	}
}

func TestDisconnectDropsBackReference(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	src, _ := g.NewShader(passthrough)
	sink, _ := g.NewShader(passthrough)
	if err := sink.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	sink.Disconnect("image")
	if _, ok := sink.base().inputs["image"]; ok {
		t.Error("edge still present after Disconnect")
	}
	if _, ok := src.base().consumers[sink.ID()]; ok {
		t.Error("producer still holds consumer back-reference after Disconnect")
	}
	// Disconnecting an unconnected slot is a no-op.
	sink.Disconnect("image")
}

func TestOutputNeverNil(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	fx, _ := g.NewShader(passthrough)
	if fx.Output(DefaultOutput) == nil {
		t.Error("Output before first frame is nil")
	}
	if fx.Output("bogus") == nil {
		t.Error("Output for unknown name is nil")
	}
	fx.Dispose()
	if fx.Output(DefaultOutput) == nil {
		t.Error("Output after Dispose is nil")
	}
}

func TestUpdateUniformRejectsReserved(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	fx, _ := g.NewShader(passthrough)
	fx.UpdateUniform(GlobalResolution, Vec2(1, 1))
	if _, ok := fx.base().uniforms[GlobalResolution]; ok {
		t.Errorf("reserved uniform %s was stored", GlobalResolution)
	}
	fx.UpdateUniform("u_custom", Float(3))
	if _, ok := fx.base().uniforms["u_custom"]; !ok {
		t.Error("node-local uniform was not stored")
	}
}

func TestConnectAfterDispose(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	src, _ := g.NewShader(passthrough)
	fx, _ := g.NewShader(passthrough)
	fx.Dispose()
	if err := fx.Connect("image", src, ""); !errors.Is(err, ErrDisposed) {
		t.Errorf("Connect on disposed node = %v, want ErrDisposed", err)
	}
}
