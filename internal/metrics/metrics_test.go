package metrics

import "testing"

func TestCounterValue_Increments(t *testing.T) {
	c := AttemptsTotal.WithLabelValues("batch", "test-outcome")
	before := CounterValue(c)

	c.Inc()
	c.Inc()

	if got := CounterValue(c) - before; got != 2 {
		t.Errorf("expected counter to grow by 2, grew by %v", got)
	}
}

func TestGaugeValue_TracksActiveSessions(t *testing.T) {
	g := ActiveSessions.WithLabelValues("test-mode")
	g.Inc()
	if got := GaugeValue(g); got != 1 {
		t.Errorf("expected gauge 1, got %v", got)
	}
	g.Dec()
	if got := GaugeValue(g); got != 0 {
		t.Errorf("expected gauge 0, got %v", got)
	}
}
